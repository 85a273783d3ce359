package viper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type section struct {
	Form    string `mapstructure:"form"`
	Workers int    `mapstructure:"workers"`
}

type root struct {
	Codec section `mapstructure:"codec"`
	Name  string  `mapstructure:"name"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLAndJSON(t *testing.T) {
	yml := writeFile(t, "c.yaml", "name: yml\ncodec:\n  form: text\n  workers: 3\n")
	c := New()
	require.NoError(t, c.LoadFile(yml))
	assert.Equal(t, yml, c.ConfigFile())

	var r root
	require.NoError(t, c.Unmarshal(&r))
	assert.Equal(t, root{Name: "yml", Codec: section{Form: "text", Workers: 3}}, r)

	js := writeFile(t, "c.json", `{"codec": {"form": "base64"}}`)
	c = New()
	require.NoError(t, c.LoadFile(js))
	var s section
	require.NoError(t, c.UnmarshalKey("codec", &s))
	assert.Equal(t, "base64", s.Form)
}

func TestLoadFileErrors(t *testing.T) {
	c := New()
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := writeFile(t, "bad.yaml", "codec: [unclosed\n")
	assert.Error(t, New().LoadFile(bad))
}

func TestDefaultsAndEnv(t *testing.T) {
	c := New()
	c.SetDefault("codec.form", "binary")
	c.SetDefault("codec.workers", 1)
	c.BindEnv("VIPERTEST")
	t.Setenv("VIPERTEST_CODEC_WORKERS", "8")

	var r root
	require.NoError(t, c.Unmarshal(&r))
	assert.Equal(t, "binary", r.Codec.Form)
	assert.Equal(t, 8, r.Codec.Workers)
	assert.True(t, c.IsSet("codec.form"))

	c.Set("codec.form", "text")
	require.NoError(t, c.Unmarshal(&r))
	assert.Equal(t, "text", r.Codec.Form)
}

func TestZeroValueConfig(t *testing.T) {
	var c Config
	var r root
	assert.NoError(t, c.Unmarshal(&r))
	assert.NoError(t, c.UnmarshalKey("codec", &r.Codec))
	assert.False(t, c.IsSet("name"))
}
