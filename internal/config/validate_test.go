package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad token url", func(c *Config) { c.Auth.TokenURL = "ftp://identity" }, "auth.token_url"},
		{"empty token url", func(c *Config) { c.Auth.TokenURL = "" }, "auth.token_url"},
		{"token timeout too short", func(c *Config) { c.Auth.TokenTimeout = "10ms" }, "auth.token_timeout"},
		{"negative margin", func(c *Config) { c.Auth.SafetyMargin = "-1s" }, "auth.safety_margin"},
		{"garbage timeout", func(c *Config) { c.Network.Timeout = "forever" }, "network.timeout"},
		{"zero retries", func(c *Config) { c.Network.MaxRetries = 0 }, "network.max_retries"},
		{"too many retries", func(c *Config) { c.Network.MaxRetries = 11 }, "network.max_retries"},
		{"negative base delay", func(c *Config) { c.Network.BaseDelay = "-2s" }, "network.base_delay"},
		{"non-error status", func(c *Config) { c.Network.RetryableStatuses = []int{200} }, "network.retryable_statuses"},
		{"bad catalog url", func(c *Config) { c.Network.CatalogURL = "catalog" }, "network.catalog_url"},
		{"bad mode", func(c *Config) { c.Transfers.Mode = "async" }, "transfers.mode"},
		{"zero workers", func(c *Config) { c.Transfers.MaxWorkers = 0 }, "transfers.max_workers"},
		{"too many concurrent", func(c *Config) { c.Transfers.MaxConcurrent = 65 }, "transfers.max_concurrent"},
		{"tiny chunk", func(c *Config) { c.Transfers.ChunkSize = "1KB" }, "transfers.chunk_size"},
		{"huge chunk", func(c *Config) { c.Transfers.ChunkSize = "1GiB" }, "transfers.chunk_size"},
		{"bad bandwidth", func(c *Config) { c.Transfers.BandwidthLimit = "fast" }, "transfers.bandwidth_limit"},
		{"empty output dir", func(c *Config) { c.Transfers.OutputDir = "  " }, "transfers.output_dir"},
		{"bad log level", func(c *Config) { c.Logging.LogLevel = "chatty" }, "logging.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_Acceptances(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bandwidth with suffix", func(c *Config) { c.Transfers.BandwidthLimit = "10MB/s" }},
		{"bandwidth bare", func(c *Config) { c.Transfers.BandwidthLimit = "1048576" }},
		{"cooperative", func(c *Config) { c.Transfers.Mode = ModeCooperative }},
		{"zero margin", func(c *Config) { c.Auth.SafetyMargin = "0s" }},
		{"no retryable statuses", func(c *Config) { c.Network.RetryableStatuses = nil }},
		{"uppercase log level", func(c *Config) { c.Logging.LogLevel = "DEBUG" }},
		{"http endpoint", func(c *Config) { c.Network.CatalogURL = "http://localhost:8080/odata/v1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.NoError(t, Validate(cfg))
		})
	}
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transfers.Mode = "async"
	cfg.Network.MaxRetries = 0
	cfg.Logging.LogLevel = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfers.mode")
	assert.Contains(t, err.Error(), "network.max_retries")
	assert.Contains(t, err.Error(), "logging.log_level")
}
