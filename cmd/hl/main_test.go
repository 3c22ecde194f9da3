package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(append([]string{"--format", "text"}, args...))
	return rootCmd.Execute()
}

func TestCLI_LinkLifecycle(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HL_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	payload := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(payload, []byte("hello"), 0644))

	require.NoError(t, runCLI(t, "config", "init"))
	assert.FileExists(t, filepath.Join(".hardlinks", "hardlinks.toml"))

	require.NoError(t, runCLI(t, "put", "/tempZone/home/rods/a.txt", payload))
	require.NoError(t, runCLI(t, "ln", "/tempZone/home/rods/a.txt", "/tempZone/home/rods/b.txt"))

	h, closeHost, err := openHost(hostOptions{})
	require.NoError(t, err)
	info, err := h.Stat(t.Context(), "/tempZone/home/rods/b.txt")
	require.NoError(t, err)
	closeHost()
	assert.NotEmpty(t, info.GroupID)
	assert.Len(t, info.Siblings, 1)

	require.NoError(t, runCLI(t, "rm", "--yes", "/tempZone/home/rods/a.txt"))
	require.NoError(t, runCLI(t, "stat", "/tempZone/home/rods/b.txt"))
	assert.Error(t, runCLI(t, "stat", "/tempZone/home/rods/a.txt"))

	assert.Error(t, runCLI(t, "rule", `{"operation": "hard_links_count_links", "logical_path": "/tempZone/home/rods/b.txt"}`))
}
