package config

import (
	"fmt"
	"io"
)

const redacted = "(set, hidden)"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command. The client
// secret is never printed.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", path)

	renderAuthSection(ew, &cfg.Auth)
	renderNetworkSection(ew, &cfg.Network)
	renderTransfersSection(ew, &cfg.Transfers)
	renderLedgerSection(ew, &cfg.Ledger)
	renderLoggingSection(ew, &cfg.Logging)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	ew.printf("[auth]\n")
	ew.printf("  client_id     = %q\n", a.ClientID)

	secret := ""
	if a.ClientSecret != "" {
		secret = redacted
	}

	ew.printf("  client_secret = %q\n", secret)
	ew.printf("  token_url     = %q\n", a.TokenURL)
	ew.printf("  token_timeout = %q\n", a.TokenTimeout)
	ew.printf("  safety_margin = %q\n\n", a.SafetyMargin)
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  timeout            = %q\n", n.Timeout)
	ew.printf("  max_retries        = %d\n", n.MaxRetries)
	ew.printf("  base_delay         = %q\n", n.BaseDelay)
	ew.printf("  retryable_statuses = %v\n", n.RetryableStatuses)
	ew.printf("  user_agent         = %q\n", n.UserAgent)
	ew.printf("  catalog_url        = %q\n", n.CatalogURL)
	ew.printf("  download_url       = %q\n\n", n.DownloadURL)
}

func renderTransfersSection(ew *errWriter, t *TransfersConfig) {
	ew.printf("[transfers]\n")
	ew.printf("  mode            = %q\n", t.Mode)
	ew.printf("  parallel        = %t\n", t.Parallel)
	ew.printf("  max_workers     = %d\n", t.MaxWorkers)
	ew.printf("  max_concurrent  = %d\n", t.MaxConcurrent)
	ew.printf("  skip_existing   = %t\n", t.SkipExisting)
	ew.printf("  verify_checksum = %t\n", t.VerifyChecksum)
	ew.printf("  chunk_size      = %q\n", t.ChunkSize)
	ew.printf("  bandwidth_limit = %q\n", t.BandwidthLimit)
	ew.printf("  output_dir      = %q\n\n", t.OutputDir)
}

func renderLedgerSection(ew *errWriter, l *LedgerConfig) {
	ew.printf("[ledger]\n")
	ew.printf("  enabled = %t\n", l.Enabled)
	ew.printf("  path    = %q\n\n", l.Path)
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level = %q\n", l.LogLevel)
}
