package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvOutputDir, "/data/products")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "/data/products", overrides.OutputDir)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvOutputDir, "")

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.OutputDir)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "CDSE_GET_CONFIG", EnvConfig)
	assert.Equal(t, "CDSE_GET_OUTPUT_DIR", EnvOutputDir)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadDotEnv_SetsUnsetVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CDSE_GET_TEST_DOTENV=from-file\n"), 0o600))

	t.Setenv("CDSE_GET_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CDSE_GET_TEST_DOTENV"))

	loaded, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-file", os.Getenv("CDSE_GET_TEST_DOTENV"))
}

func TestLoadDotEnv_RealEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CDSE_GET_TEST_DOTENV=from-file\n"), 0o600))

	t.Setenv("CDSE_GET_TEST_DOTENV", "from-env")

	_, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", os.Getenv("CDSE_GET_TEST_DOTENV"))
}

func TestLoadDotEnv_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BAD-KEY=value\n"), 0o600))

	_, err := LoadDotEnv(path)
	assert.Error(t, err)
}
