package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func ptr[T any](v T) *T {
	return &v
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
client_id = "sh-client"
client_secret = "s3cret"
token_url = "https://identity.example.com/token"
token_timeout = "30s"
safety_margin = "90s"

[network]
timeout = "2m"
max_retries = 5
base_delay = "500ms"
retryable_statuses = [429, 503]
user_agent = "custom/1.0"
catalog_url = "https://catalog.example.com/odata/v1"
download_url = "https://zipper.example.com/odata/v1"

[transfers]
mode = "cooperative"
parallel = false
max_workers = 8
max_concurrent = 6
skip_existing = true
verify_checksum = false
chunk_size = "1MiB"
bandwidth_limit = "5MB/s"
output_dir = "/data/s2"

[ledger]
enabled = false
path = "/var/lib/cdse-get/ledger.db"

[logging]
log_level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sh-client", cfg.Auth.ClientID)
	assert.Equal(t, "s3cret", cfg.Auth.ClientSecret)
	assert.Equal(t, "https://identity.example.com/token", cfg.Auth.TokenURL)
	assert.Equal(t, "30s", cfg.Auth.TokenTimeout)
	assert.Equal(t, "90s", cfg.Auth.SafetyMargin)

	assert.Equal(t, "2m", cfg.Network.Timeout)
	assert.Equal(t, 5, cfg.Network.MaxRetries)
	assert.Equal(t, "500ms", cfg.Network.BaseDelay)
	assert.Equal(t, []int{429, 503}, cfg.Network.RetryableStatuses)
	assert.Equal(t, "custom/1.0", cfg.Network.UserAgent)

	assert.Equal(t, ModeCooperative, cfg.Transfers.Mode)
	assert.False(t, cfg.Transfers.Parallel)
	assert.Equal(t, 8, cfg.Transfers.MaxWorkers)
	assert.Equal(t, 6, cfg.Transfers.MaxConcurrent)
	assert.True(t, cfg.Transfers.SkipExisting)
	assert.False(t, cfg.Transfers.VerifyChecksum)
	assert.Equal(t, "1MiB", cfg.Transfers.ChunkSize)
	assert.Equal(t, "5MB/s", cfg.Transfers.BandwidthLimit)
	assert.Equal(t, "/data/s2", cfg.Transfers.OutputDir)

	assert.False(t, cfg.Ledger.Enabled)
	assert.Equal(t, "/var/lib/cdse-get/ledger.db", cfg.Ledger.Path)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[transfers]
max_workers = 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Transfers.MaxWorkers)
	assert.Equal(t, ModeBlocking, cfg.Transfers.Mode)
	assert.True(t, cfg.Transfers.VerifyChecksum)
	assert.Equal(t, 3, cfg.Network.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "[transfers\nmax_workers = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeTestConfig(t, `
[transfers]
mode = "eventually"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "transfers.mode")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadOrDefault_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolvePath_Precedence(t *testing.T) {
	assert.Equal(t, DefaultConfigPath(), ResolvePath(EnvOverrides{}, CLIOverrides{}))
	assert.Equal(t, "/env.toml", ResolvePath(EnvOverrides{ConfigPath: "/env.toml"}, CLIOverrides{}))
	assert.Equal(t, "/cli.toml", ResolvePath(
		EnvOverrides{ConfigPath: "/env.toml"}, CLIOverrides{ConfigPath: "/cli.toml"}))
}

func TestResolve_LayerOrder(t *testing.T) {
	path := writeTestConfig(t, `
[transfers]
output_dir = "/from/file"
max_workers = 2
skip_existing = true
`)

	// file only
	cfg, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.Transfers.OutputDir)

	// env beats file
	cfg, err = Resolve(EnvOverrides{OutputDir: "/from/env"}, CLIOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Transfers.OutputDir)

	// CLI beats env, explicit false still wins
	cfg, err = Resolve(EnvOverrides{OutputDir: "/from/env"}, CLIOverrides{
		ConfigPath:   path,
		OutputDir:    ptr("/from/cli"),
		Workers:      ptr(7),
		SkipExisting: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "/from/cli", cfg.Transfers.OutputDir)
	assert.Equal(t, 7, cfg.Transfers.MaxWorkers)
	assert.Equal(t, 7, cfg.Transfers.MaxConcurrent)
	assert.False(t, cfg.Transfers.SkipExisting)
}

func TestResolve_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")})
	require.NoError(t, err)
	assert.Equal(t, ModeBlocking, cfg.Transfers.Mode)
}

func TestResolve_AllCLIOverrides(t *testing.T) {
	cfg, err := Resolve(EnvOverrides{}, CLIOverrides{
		ConfigPath:     filepath.Join(t.TempDir(), "none.toml"),
		Mode:           ptr(ModeCooperative),
		Parallel:       ptr(false),
		VerifyChecksum: ptr(false),
		LogLevel:       ptr("warn"),
	})
	require.NoError(t, err)

	assert.Equal(t, ModeCooperative, cfg.Transfers.Mode)
	assert.False(t, cfg.Transfers.Parallel)
	assert.False(t, cfg.Transfers.VerifyChecksum)
	assert.Equal(t, "warn", cfg.Logging.LogLevel)
}

func TestResolve_InvalidCLIOverrideRejected(t *testing.T) {
	_, err := Resolve(EnvOverrides{}, CLIOverrides{
		ConfigPath: filepath.Join(t.TempDir(), "none.toml"),
		Workers:    ptr(0),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_workers")
}
