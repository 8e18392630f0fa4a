package datadir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	content := `# comment
KEY_ONE=value1
KEY_TWO="value with spaces"
export KEY_THREE='single quoted'
no_equals_sign

 =novalue
EMPTY=
`
	pairs, err := ParseEnv(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, []EnvPair{
		{Key: "KEY_ONE", Value: "value1"},
		{Key: "KEY_TWO", Value: "value with spaces"},
		{Key: "KEY_THREE", Value: "single quoted"},
		{Key: "EMPTY", Value: ""},
	}, pairs)
}

func TestLoadEnv_FirstWriteWins(t *testing.T) {
	dataRoot := t.TempDir()
	cwd := t.TempDir()
	t.Setenv(EnvFileEnvVar, "")

	require.NoError(t, os.WriteFile(filepath.Join(dataRoot, ".env"), []byte("EV_TEST_A=from-data\nEV_TEST_B=from-data\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(cwd, ".env"), []byte("EV_TEST_A=from-cwd\nEV_TEST_C=from-cwd\n"), 0600))

	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(cwd))
	t.Cleanup(func() { os.Chdir(orig) })

	for _, k := range []string{"EV_TEST_A", "EV_TEST_B", "EV_TEST_C"} {
		os.Unsetenv(k)
		k := k
		t.Cleanup(func() { os.Unsetenv(k) })
	}
	t.Setenv("EV_TEST_B", "from-shell")

	assert.Len(t, FindEnvFiles(dataRoot), 2)
	require.NoError(t, LoadEnv(dataRoot))

	assert.Equal(t, "from-data", os.Getenv("EV_TEST_A"))
	assert.Equal(t, "from-shell", os.Getenv("EV_TEST_B"))
	assert.Equal(t, "from-cwd", os.Getenv("EV_TEST_C"))
}

func TestLoadEnv_OverrideFile(t *testing.T) {
	dataRoot := t.TempDir()
	override := filepath.Join(t.TempDir(), "custom.env")
	require.NoError(t, os.WriteFile(filepath.Join(dataRoot, ".env"), []byte("EV_TEST_D=ignored\n"), 0600))
	require.NoError(t, os.WriteFile(override, []byte("EV_TEST_E=custom\n"), 0600))

	t.Setenv(EnvFileEnvVar, override)
	os.Unsetenv("EV_TEST_D")
	os.Unsetenv("EV_TEST_E")
	t.Cleanup(func() {
		os.Unsetenv("EV_TEST_D")
		os.Unsetenv("EV_TEST_E")
	})

	assert.Equal(t, []string{override}, FindEnvFiles(dataRoot))
	require.NoError(t, LoadEnv(dataRoot))

	_, set := os.LookupEnv("EV_TEST_D")
	assert.False(t, set)
	assert.Equal(t, "custom", os.Getenv("EV_TEST_E"))
}

func TestApplyEnvFile_Missing(t *testing.T) {
	assert.NoError(t, ApplyEnvFile(filepath.Join(t.TempDir(), "nope.env"), nil))
}
