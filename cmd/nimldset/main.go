// nimldset inspects and converts AFNI NIML surface datasets.
//
// Usage:
//
//	nimldset [--config path] info <file>
//	nimldset [--config path] dump [--indent] <file>
//	nimldset [--config path] convert [--form binary|text|base64] <in> <out>
//	nimldset version
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/lk2023060901/niml-dset-go/application"
	"github.com/lk2023060901/niml-dset-go/pkg/log"
	"github.com/lk2023060901/niml-dset-go/pkg/util/merr"
)

// errUsage 表示命令行参数错误，退出码为 2。
var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) || errors.Is(err, pflag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type command struct {
	name    string
	summary string
	run     func(env *env, args []string) error
	// standalone 的子命令不加载配置。
	standalone bool
}

var commands = []command{
	{name: "info", summary: "print dataset metadata", run: runInfo},
	{name: "dump", summary: "print the raw node tree as JSON", run: runDump},
	{name: "convert", summary: "re-encode a dataset file", run: runConvert},
	{name: "version", summary: "print the tool version", run: runVersion, standalone: true},
}

// env 是子命令的执行环境。
type env struct {
	app    *application.Application
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) error {
	var configPath string
	flags := pflag.NewFlagSet("nimldset", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	flags.StringVar(&configPath, "config", "", "config file (default $"+application.ConfigPathEnv+" or "+application.DefaultConfigPath+")")
	flags.Usage = func() { usage(stderr, flags) }
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		usage(stderr, flags)
		return errors.Wrap(errUsage, "missing command")
	}

	name := flags.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		usage(stderr, flags)
		return errors.Wrapf(errUsage, "unknown command %q", name)
	}

	if cmd.standalone {
		return cmd.run(&env{stdout: stdout, stderr: stderr}, flags.Args()[1:])
	}

	app := application.New()
	if err := app.Init(configPath); err != nil {
		return err
	}
	defer app.Close()

	undo, err := maxprocs.Set(maxprocs.Logger(log.S().Debugf))
	if err != nil {
		log.Warn("set GOMAXPROCS failed", zap.Error(err))
	}
	defer undo()

	e := &env{app: app, stdout: stdout, stderr: stderr}
	if err := cmd.run(e, flags.Args()[1:]); err != nil {
		app.Logger("cli").Debug("command failed",
			zap.String("command", name), zap.Int32("code", merr.Code(err)), zap.Error(err))
		return err
	}
	return nil
}

func usage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: nimldset [--config path] <command> [flags] [args]")
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nGlobal flags:")
	fmt.Fprint(w, flags.FlagUsages())
}

// parseFlags 解析子命令参数，并要求恰好 nargs 个位置参数。
func parseFlags(e *env, flags *pflag.FlagSet, args []string, nargs int, argsUsage string) ([]string, error) {
	flags.SetOutput(e.stderr)
	flags.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: nimldset %s %s\n", flags.Name(), argsUsage)
		fmt.Fprint(e.stderr, flags.FlagUsages())
	}
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != nargs {
		flags.Usage()
		return nil, errors.Wrapf(errUsage, "%s expects %d argument(s), got %d", flags.Name(), nargs, flags.NArg())
	}
	return flags.Args(), nil
}
