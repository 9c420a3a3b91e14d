package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validation range constants.
const (
	minWorkers       = 1
	maxWorkers       = 64
	minRetries       = 1
	maxRetries       = 10
	minStatus        = 400
	maxStatus        = 599
	minChunkBytes    = 4 * kibibyte
	maxChunkBytes    = 16 * mebibyte
	minTimeout       = 1 * time.Second
	minTokenTimeout  = 1 * time.Second
	bandwidthPerSec  = "/s"
	schemeHTTPS      = "https"
	schemeHTTP       = "http"
	logLevelDebug    = "debug"
	logLevelInfo     = "info"
	logLevelWarn     = "warn"
	logLevelError    = "error"
	maxUserAgentSize = 256
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	errs = append(errs, validateURL("auth.token_url", a.TokenURL)...)
	errs = append(errs, validateDurationMin("auth.token_timeout", a.TokenTimeout, minTokenTimeout)...)
	errs = append(errs, validateDurationNonNeg("auth.safety_margin", a.SafetyMargin)...)

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("network.timeout", n.Timeout, minTimeout)...)
	errs = append(errs, validateDurationNonNeg("network.base_delay", n.BaseDelay)...)

	if n.MaxRetries < minRetries || n.MaxRetries > maxRetries {
		errs = append(errs, fmt.Errorf("network.max_retries: must be %d-%d, got %d",
			minRetries, maxRetries, n.MaxRetries))
	}

	for _, code := range n.RetryableStatuses {
		if code < minStatus || code > maxStatus {
			errs = append(errs, fmt.Errorf("network.retryable_statuses: %d is not an HTTP error status", code))
		}
	}

	if len(n.UserAgent) > maxUserAgentSize {
		errs = append(errs, fmt.Errorf("network.user_agent: must be at most %d characters", maxUserAgentSize))
	}

	errs = append(errs, validateURL("network.catalog_url", n.CatalogURL)...)
	errs = append(errs, validateURL("network.download_url", n.DownloadURL)...)

	return errs
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	switch t.Mode {
	case ModeBlocking, ModeCooperative:
	default:
		errs = append(errs, fmt.Errorf("transfers.mode: must be %q or %q, got %q",
			ModeBlocking, ModeCooperative, t.Mode))
	}

	if t.MaxWorkers < minWorkers || t.MaxWorkers > maxWorkers {
		errs = append(errs, fmt.Errorf("transfers.max_workers: must be %d-%d, got %d",
			minWorkers, maxWorkers, t.MaxWorkers))
	}

	if t.MaxConcurrent < minWorkers || t.MaxConcurrent > maxWorkers {
		errs = append(errs, fmt.Errorf("transfers.max_concurrent: must be %d-%d, got %d",
			minWorkers, maxWorkers, t.MaxConcurrent))
	}

	errs = append(errs, validateChunkSize(t.ChunkSize)...)

	if _, err := ParseSize(strings.TrimSuffix(strings.TrimSpace(t.BandwidthLimit), bandwidthPerSec)); err != nil {
		errs = append(errs, fmt.Errorf("transfers.bandwidth_limit: %w", err))
	}

	if strings.TrimSpace(t.OutputDir) == "" {
		errs = append(errs, errors.New("transfers.output_dir: must not be empty"))
	}

	return errs
}

func validateChunkSize(s string) []error {
	n, err := ParseSize(s)
	if err != nil {
		return []error{fmt.Errorf("transfers.chunk_size: %w", err)}
	}

	if n < minChunkBytes || n > maxChunkBytes {
		return []error{fmt.Errorf("transfers.chunk_size: must be between 4KiB and 16MiB, got %q", s)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	switch strings.ToLower(l.LogLevel) {
	case logLevelDebug, logLevelInfo, logLevelWarn, logLevelError:
		return nil
	default:
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel)}
	}
}

func validateURL(field, value string) []error {
	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	if (u.Scheme != schemeHTTPS && u.Scheme != schemeHTTP) || u.Host == "" {
		return []error{fmt.Errorf("%s: must be an http(s) URL, got %q", field, value)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be at least %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must not be negative, got %s", field, d)}
	}

	return nil
}
