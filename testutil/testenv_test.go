package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TESTUTIL_A=from-file\nTESTUTIL_B=\"quoted\"\n"), 0o600))

	t.Setenv("TESTUTIL_A", "from-env")
	t.Setenv("TESTUTIL_B", "")
	require.NoError(t, os.Unsetenv("TESTUTIL_B"))

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("TESTUTIL_B") })

	assert.Equal(t, "from-env", os.Getenv("TESTUTIL_A"))
	assert.Equal(t, "quoted", os.Getenv("TESTUTIL_B"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestMissingEnv(t *testing.T) {
	t.Setenv("TESTUTIL_SET", "x")
	t.Setenv("TESTUTIL_EMPTY", "")

	assert.Equal(t, []string{"TESTUTIL_EMPTY"}, MissingEnv("TESTUTIL_SET", "TESTUTIL_EMPTY"))
}

func TestFindModuleRoot(t *testing.T) {
	root := FindModuleRoot("fallback")
	assert.FileExists(t, filepath.Join(root, "go.mod"))
}

func TestIsolateHome(t *testing.T) {
	for _, env := range []string{"HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
		t.Setenv(env, os.Getenv(env))
	}

	root := t.TempDir()
	require.NoError(t, IsolateHome(root))

	assert.Equal(t, filepath.Join(root, "data"), os.Getenv("XDG_DATA_HOME"))
	assert.DirExists(t, filepath.Join(root, "home"))
}
