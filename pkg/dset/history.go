package dset

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultComponent 是历史记录中 "Saved by" 之后的写出方标识。
const DefaultComponent = "niml-dset-go/pkg/dset:Serialize"

func historyLine(user, host string, now time.Time, component string) string {
	return fmt.Sprintf("[%s@%s: %s] Saved by %s", user, host, now.Format(time.ANSIC), component)
}

// appendHistory 在已有记录之后追加一行，已有记录非空且不以换行结尾时先补换行。
func appendHistory(prior, line string) string {
	if prior != "" && !strings.HasSuffix(prior, "\n") {
		prior += "\n"
	}
	return prior + line
}

func currentUser() string {
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "unknown"
}

func currentHost() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localhost"
	}
	return host
}
