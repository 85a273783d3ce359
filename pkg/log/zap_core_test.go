package log

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// lockedBuffer 是并发安全的 WriteSyncer。
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTextCoreWith(t *testing.T) {
	out := &lockedBuffer{}
	lg, _, err := InitLoggerWithWriteSyncer(&Config{Level: "info", Format: FormatJSON}, out)
	require.NoError(t, err)

	child := (&MLogger{Logger: lg}).With(FieldPath("/tmp/a.niml.dset"))
	child.Debug("filtered")
	child.Info("loaded", FieldForm("text"))

	text := out.String()
	assert.NotContains(t, text, "filtered")
	assert.Contains(t, text, `"path":"/tmp/a.niml.dset"`)
	assert.Contains(t, text, `"form":"text"`)
	assert.Equal(t, 1, strings.Count(text, "\n"))
}

func TestLazyWithKeepsParentClean(t *testing.T) {
	out := &lockedBuffer{}
	lg, _, err := InitLoggerWithWriteSyncer(&Config{Level: "debug", Format: FormatJSON}, out)
	require.NoError(t, err)
	parent := &MLogger{Logger: lg}

	a := parent.With(FieldModule("a"))
	b := a.With(zap.Int("n", 1))
	parent.Info("parent")
	b.Info("child")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], `"module"`)
	assert.Contains(t, lines[1], `"module":"a"`)
	assert.Contains(t, lines[1], `"n":1`)

	core := NewLazyWith(zapcore.NewNopCore(), []zapcore.Field{zap.String("k", "v")})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
	assert.NoError(t, core.Sync())
}

func TestAsyncCore(t *testing.T) {
	out := &lockedBuffer{}
	cfg := &Config{
		Level:                    "debug",
		Format:                   FormatJSON,
		AsyncWriteEnable:         true,
		AsyncWriteMaxBytesPerLog: 256,
	}
	lg, props, err := InitLoggerWithWriteSyncer(cfg, out)
	require.NoError(t, err)
	_, ok := props.Core.(*asyncTextIOCore)
	require.True(t, ok)

	lg.With(FieldComponent("dset.io")).Info("saved", FieldPath("/tmp/b.niml.dset"))
	lg.Info(strings.Repeat("x", 1024))
	require.NoError(t, lg.Sync())

	text := out.String()
	assert.Contains(t, text, `"component":"dset.io"`)
	assert.Contains(t, text, `"path":"/tmp/b.niml.dset"`)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, lines[1], 255, "long entries are truncated but keep the newline")

	props.Stop()
	props.Stop()
	lg.Info("after stop")
	assert.NotContains(t, out.String(), "after stop")
}

func TestAsyncOnlyForFileOutput(t *testing.T) {
	dir := t.TempDir()
	_, props, err := InitLogger(&Config{
		Level:            "info",
		AsyncWriteEnable: true,
		File:             FileLogConfig{RootPath: dir, Filename: "async.log"},
	})
	require.NoError(t, err)
	defer props.Stop()
	_, ok := props.Core.(*asyncTextIOCore)
	assert.True(t, ok)

	_, props, err = InitLogger(&Config{Level: "info", AsyncWriteEnable: true, Stderr: true})
	require.NoError(t, err)
	_, ok = props.Core.(*asyncTextIOCore)
	assert.False(t, ok)
	props.Stop()
}
