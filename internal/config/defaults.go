package config

import (
	"net/http"
	"path/filepath"
)

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file.
const (
	defaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	// Durations are strings in TOML form.
	defaultTokenTimeout   = "60s"
	defaultSafetyMargin   = "60s"
	defaultTimeout        = "60s"
	defaultMaxRetries     = 3
	defaultBaseDelay      = "1s"
	defaultUserAgent      = "cdse-get/0.1"
	defaultCatalogURL     = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	defaultDownloadURL    = "https://zipper.dataspace.copernicus.eu/odata/v1"
	defaultMode           = ModeBlocking
	defaultMaxWorkers     = 4
	defaultMaxConcurrent  = 4
	defaultChunkSize      = "128KiB"
	defaultBandwidthLimit = "0"
	defaultOutputDir      = "."
	defaultLogLevel       = "info"
	ledgerFileName        = "ledger.db"
	credentialFileName    = "credentials.json"
)

// DefaultConfig returns a Config populated with all default values.
// It is the starting point for TOML decoding, so unset fields keep their
// defaults, and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenURL:     defaultTokenURL,
			TokenTimeout: defaultTokenTimeout,
			SafetyMargin: defaultSafetyMargin,
		},
		Network: NetworkConfig{
			Timeout:    defaultTimeout,
			MaxRetries: defaultMaxRetries,
			BaseDelay:  defaultBaseDelay,
			RetryableStatuses: []int{
				http.StatusTooManyRequests,
				http.StatusBadGateway,
				http.StatusServiceUnavailable,
				http.StatusGatewayTimeout,
			},
			UserAgent:   defaultUserAgent,
			CatalogURL:  defaultCatalogURL,
			DownloadURL: defaultDownloadURL,
		},
		Transfers: TransfersConfig{
			Mode:           defaultMode,
			Parallel:       true,
			MaxWorkers:     defaultMaxWorkers,
			MaxConcurrent:  defaultMaxConcurrent,
			SkipExisting:   false,
			VerifyChecksum: true,
			ChunkSize:      defaultChunkSize,
			BandwidthLimit: defaultBandwidthLimit,
			OutputDir:      defaultOutputDir,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    DefaultLedgerPath(),
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
	}
}

// DefaultLedgerPath returns the default ledger database location inside the
// data directory, or "" if the home directory cannot be determined.
func DefaultLedgerPath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, ledgerFileName)
}

// DefaultCredentialPath returns where "cdse-get login" stores credentials.
func DefaultCredentialPath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, credentialFileName)
}
