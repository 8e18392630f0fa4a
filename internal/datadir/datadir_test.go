package datadir

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EnvVarWins(t *testing.T) {
	dir := t.TempDir()
	envDir := filepath.Join(dir, "env-root")
	t.Setenv(EnvVar, envDir)

	dd, err := New("ignored-config-value")
	require.NoError(t, err)
	assert.Equal(t, envDir, dd.Root())
}

func TestNew_ConfigFallback(t *testing.T) {
	t.Setenv(EnvVar, "")
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "from-config")

	dd, err := New(cfgDir)
	require.NoError(t, err)
	assert.Equal(t, cfgDir, dd.Root())
}

func TestNew_DefaultHome(t *testing.T) {
	t.Setenv(EnvVar, "")
	home, _ := os.UserHomeDir()

	dd, err := New("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultDirName), dd.Root())
}

func TestDataDir_Paths(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvVar, root)

	dd, err := New("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "config"), dd.ConfigDir())
	assert.Equal(t, filepath.Join(root, "sessions"), dd.SessionsDir())
	assert.Equal(t, filepath.Join(root, "config", "config.yaml"), dd.ConfigFilePath())
}

func TestDataDir_EnsureDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fresh")
	t.Setenv(EnvVar, root)

	dd, err := New("")
	require.NoError(t, err)

	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, dd.EnsureDirs())
	require.NoError(t, dd.EnsureDirs(), "EnsureDirs must be idempotent")

	for _, dir := range []string{dd.Root(), dd.ConfigDir(), dd.SessionsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, "dir should exist: %s", dir)
		assert.True(t, info.IsDir(), "should be directory: %s", dir)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm(), "permissions of %s", dir)
	}
}

func TestDataDir_NewSessionDir(t *testing.T) {
	t.Setenv(EnvVar, "")
	dd, err := New(filepath.Join(t.TempDir(), "root"))
	require.NoError(t, err)

	a, err := dd.NewSessionDir()
	require.NoError(t, err)
	b, err := dd.NewSessionDir()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, dd.SessionsDir(), filepath.Dir(a))

	entries, err := os.ReadDir(a)
	require.NoError(t, err)
	assert.Empty(t, entries, "session dir starts empty")
}

func TestDataDir_PruneSessions(t *testing.T) {
	t.Setenv(EnvVar, "")
	dd, err := New(t.TempDir())
	require.NoError(t, err)

	removed, err := dd.PruneSessions(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, removed, "missing sessions dir is not an error")

	stale, err := dd.NewSessionDir()
	require.NoError(t, err)
	fresh, err := dd.NewSessionDir()
	require.NoError(t, err)
	other := filepath.Join(dd.SessionsDir(), "keep-me")
	require.NoError(t, os.Mkdir(other, 0700))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	removed, err = dd.PruneSessions(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, removed)

	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(other)
	assert.NoError(t, err, "non-session dirs are left alone")
}
