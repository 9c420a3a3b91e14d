// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for cdse-get. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth      AuthConfig      `toml:"auth" json:"auth"`
	Network   NetworkConfig   `toml:"network" json:"network"`
	Transfers TransfersConfig `toml:"transfers" json:"transfers"`
	Ledger    LedgerConfig    `toml:"ledger" json:"ledger"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
}

// AuthConfig holds the client credentials and token endpoint settings.
// Credentials given here have the lowest precedence: flags, environment and
// the credential file written by "cdse-get login" all win over them.
type AuthConfig struct {
	ClientID     string `toml:"client_id" json:"client_id"`
	ClientSecret string `toml:"client_secret" json:"client_secret"`
	TokenURL     string `toml:"token_url" json:"token_url"`
	TokenTimeout string `toml:"token_timeout" json:"token_timeout"`
	SafetyMargin string `toml:"safety_margin" json:"safety_margin"`
}

// NetworkConfig controls the per-attempt timeout, the retry policy and the
// service endpoints.
type NetworkConfig struct {
	Timeout           string `toml:"timeout" json:"timeout"`
	MaxRetries        int    `toml:"max_retries" json:"max_retries"`
	BaseDelay         string `toml:"base_delay" json:"base_delay"`
	RetryableStatuses []int  `toml:"retryable_statuses" json:"retryable_statuses"`
	UserAgent         string `toml:"user_agent" json:"user_agent"`
	CatalogURL        string `toml:"catalog_url" json:"catalog_url"`
	DownloadURL       string `toml:"download_url" json:"download_url"`
}

// TransfersConfig selects the orchestrator and controls how assets are
// written to disk.
type TransfersConfig struct {
	Mode           string `toml:"mode" json:"mode"`
	Parallel       bool   `toml:"parallel" json:"parallel"`
	MaxWorkers     int    `toml:"max_workers" json:"max_workers"`
	MaxConcurrent  int    `toml:"max_concurrent" json:"max_concurrent"`
	SkipExisting   bool   `toml:"skip_existing" json:"skip_existing"`
	VerifyChecksum bool   `toml:"verify_checksum" json:"verify_checksum"`
	ChunkSize      string `toml:"chunk_size" json:"chunk_size"`
	BandwidthLimit string `toml:"bandwidth_limit" json:"bandwidth_limit"`
	OutputDir      string `toml:"output_dir" json:"output_dir"`
}

// LedgerConfig controls the SQLite download ledger.
type LedgerConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	LogLevel string `toml:"log_level" json:"log_level"`
}

// Orchestration modes.
const (
	ModeBlocking    = "blocking"
	ModeCooperative = "cooperative"
)

// TokenTimeoutDuration returns token_timeout parsed. Invalid values fall back
// to the default; Validate reports them.
func (a *AuthConfig) TokenTimeoutDuration() time.Duration {
	return durationOr(a.TokenTimeout, defaultTokenTimeout)
}

// SafetyMarginDuration returns safety_margin parsed.
func (a *AuthConfig) SafetyMarginDuration() time.Duration {
	return durationOr(a.SafetyMargin, defaultSafetyMargin)
}

// TimeoutDuration returns the per-attempt network timeout.
func (n *NetworkConfig) TimeoutDuration() time.Duration {
	return durationOr(n.Timeout, defaultTimeout)
}

// BaseDelayDuration returns the retry base delay.
func (n *NetworkConfig) BaseDelayDuration() time.Duration {
	return durationOr(n.BaseDelay, defaultBaseDelay)
}

// ChunkSizeBytes returns chunk_size in bytes.
func (t *TransfersConfig) ChunkSizeBytes() int {
	n, err := ParseSize(t.ChunkSize)
	if err != nil || n <= 0 {
		return int(mustParseSize(defaultChunkSize))
	}

	return int(n)
}

func durationOr(s, fallback string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}

	return d
}

func mustParseSize(s string) int64 {
	n, err := ParseSize(s)
	if err != nil {
		panic(err)
	}

	return n
}
