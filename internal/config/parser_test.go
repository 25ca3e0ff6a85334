package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoaderDefaults(t *testing.T) {
	l := NewLoader()
	defer l.Close()
	l.DotEnv = []string{filepath.Join(t.TempDir(), "none.env")}

	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoaderLayers(t *testing.T) {
	luaPath := writeFile(t, "cpuload.lua", `
cpuload.config = {
    interval = "5s",
    format = "json",
    identity = "${TEST_CPULOAD_KEYDIR}/id_ed25519",
}
`)
	envPath := writeFile(t, "cpuload.env", "TEST_CPULOAD_KEYDIR=/keys\n")
	t.Cleanup(func() { os.Unsetenv("TEST_CPULOAD_KEYDIR") })

	// The environment beats the file.
	t.Setenv("CPULOAD_INTERVAL", "250ms")

	l := NewLoader()
	defer l.Close()
	l.DotEnv = []string{envPath}

	cfg, err := l.Load(luaPath)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, "/keys/id_ed25519", cfg.Source.Identity)
}

func TestLoaderErrors(t *testing.T) {
	l := NewLoader()
	defer l.Close()
	l.DotEnv = []string{filepath.Join(t.TempDir(), "none.env")}

	_, err := l.Load(filepath.Join(t.TempDir(), "missing.lua"))
	assert.Error(t, err)

	_, err = l.Load(writeFile(t, "broken.lua", "cpuload.config = {"))
	assert.Error(t, err)
}

func TestLoaderParseFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"conf/cpuload.lua": {Data: []byte(`cpuload.config = { per_core = true }`)},
	}

	l := NewLoader()
	defer l.Close()

	cfg, err := l.ParseFromFS(fsys, "conf/cpuload.lua", DefaultConfig())
	require.NoError(t, err)
	assert.True(t, cfg.PerCore)

	_, err = l.ParseFromFS(fsys, "conf/missing.lua", DefaultConfig())
	assert.Error(t, err)
}

func TestLoaderParseReader(t *testing.T) {
	l := NewLoader()
	defer l.Close()

	cfg, err := l.ParseReader(strings.NewReader(`cpuload.config = { source = "host" }`), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, SourceHost, cfg.Source.Kind)
}

func TestParseFormatAndSource(t *testing.T) {
	f, err := ParseFormat(" Pretty ")
	require.NoError(t, err)
	assert.Equal(t, FormatPretty, f)
	_, err = ParseFormat("yaml")
	assert.Error(t, err)

	k, err := ParseSourceKind("FILE")
	require.NoError(t, err)
	assert.Equal(t, SourceFile, k)
	_, err = ParseSourceKind("")
	assert.Error(t, err)
}
