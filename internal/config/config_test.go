package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every search path at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HL_CONFIG", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Catalog, cfg.Catalog)
	assert.Equal(t, "10014", cfg.Catalog.DefaultResource)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Source())

	d, err := cfg.DebounceInterval()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, d)
}

func TestLoad_SearchPath(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hardlinks"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hardlinks", FileName), []byte(`
[log]
level = "debug"

[server]
port = 9000
`), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "rods", cfg.Session.User, "unset keys keep defaults")
	assert.Contains(t, cfg.Source(), FileName)
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("HL_LOG_LEVEL", "trace")
	t.Setenv("HL_CATALOG_DEFAULT_RESOURCE", "20001")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.Log.Level)
	assert.Equal(t, "20001", cfg.Catalog.DefaultResource)
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err, "an explicit path must exist")

	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[spool]\ndebounce = \"250ms\"\n"), 0644))
	t.Setenv("HL_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	d, err := cfg.DebounceInterval()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestLoad_Invalid(t *testing.T) {
	dir := isolate(t)

	tests := map[string]string{
		"bad debounce":  "[spool]\ndebounce = \"soon\"\n",
		"zero debounce": "[spool]\ndebounce = \"0s\"\n",
		"bad port":      "[server]\nport = 70000\n",
		"empty vault":   "[vault]\nroot = \"\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ".hardlinks", FileName)

	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false), "must not overwrite")
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	want := Default()
	assert.Equal(t, want.Catalog, cfg.Catalog)
	assert.Equal(t, want.Vault, cfg.Vault)
	assert.Equal(t, want.Log, cfg.Log)
	assert.Equal(t, want.Spool, cfg.Spool)
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Session, cfg.Session)
}
