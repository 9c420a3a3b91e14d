package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tonimelisma/cdse-get/internal/auth"
	"github.com/tonimelisma/cdse-get/internal/config"
	"github.com/tonimelisma/cdse-get/internal/credfile"
	"github.com/tonimelisma/cdse-get/internal/dataspace"
	"github.com/tonimelisma/cdse-get/internal/ledger"
	"github.com/tonimelisma/cdse-get/internal/metrics"
)

// DataspaceSession holds the token session, the shared request client and the
// optional ledger and metrics for one command invocation. Every download of
// a batch shares the same instance.
type DataspaceSession struct {
	Auth    *auth.Session
	Client  *dataspace.Client
	Ledger  *ledger.Store    // nil when the ledger is disabled
	Metrics *metrics.Metrics // nil when metrics are not exposed
	logger  *slog.Logger
}

// sessionOptions are the per-command knobs that do not live in config.
type sessionOptions struct {
	// MetricsAddr starts a /metrics listener when non-empty.
	MetricsAddr string
	// MaxConns sizes the idle connection pool to the transfer bound.
	MaxConns int
	// NoLedger skips opening the ledger even when enabled in config.
	NoLedger bool
}

// NewDataspaceSession resolves credentials and builds every component the
// transfer layer needs. Missing credentials fail here, before any network
// call. Call Close when done.
func NewDataspaceSession(
	ctx context.Context, cfg *config.Config, opts sessionOptions, logger *slog.Logger,
) (*DataspaceSession, error) {
	cred, err := resolveCredential(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &DataspaceSession{logger: logger}

	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()

		m, err := metrics.New(reg)
		if err != nil {
			return nil, err
		}

		s.Metrics = m

		go func() {
			if err := m.Serve(ctx, opts.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	httpClient := newHTTPClient(opts.MaxConns)

	s.Auth, err = auth.NewSession(cred, auth.Options{
		TokenURL:     cfg.Auth.TokenURL,
		Timeout:      cfg.Auth.TokenTimeoutDuration(),
		SafetyMargin: cfg.Auth.SafetyMarginDuration(),
		HTTPClient:   httpClient,
		Recorder:     s.Metrics,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Ledger.Enabled && !opts.NoLedger {
		s.Ledger, err = openLedger(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	clientOpts := dataspace.Options{
		CatalogURL:  cfg.Network.CatalogURL,
		DownloadURL: cfg.Network.DownloadURL,
		Policy: dataspace.RetryPolicy{
			MaxAttempts:       cfg.Network.MaxRetries,
			BaseDelay:         cfg.Network.BaseDelayDuration(),
			RetryableStatuses: cfg.Network.RetryableStatuses,
		},
		Timeout:   cfg.Network.TimeoutDuration(),
		UserAgent: cfg.Network.UserAgent,
		Recorder:  s.Metrics,
	}

	// A nil *ledger.Store must not become a non-nil interface.
	if s.Ledger != nil {
		clientOpts.Locators = s.Ledger
	}

	s.Client, err = dataspace.NewClient(httpClient, s.Auth, clientOpts, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the ledger.
func (s *DataspaceSession) Close() {
	if s.Ledger == nil {
		return
	}

	if err := s.Ledger.Close(); err != nil {
		s.logger.Warn("closing ledger", slog.String("error", err.Error()))
	}

	s.Ledger = nil
}

// resolveCredential applies the credential precedence: flags, then
// environment, then the credential file written by login, then config.
// Halves are filled independently.
func resolveCredential(cfg *config.Config, logger *slog.Logger) (auth.Credential, error) {
	cred := auth.Credential{ClientID: flagClientID, ClientSecret: flagClientSecret}
	cred = cred.Merge(auth.CredentialFromEnv())

	if path := config.DefaultCredentialPath(); path != "" {
		saved, found, err := credfile.Load(path)
		if err != nil {
			return auth.Credential{}, err
		}

		if found {
			logger.Debug("using saved credential", slog.String("path", path))
			cred = cred.Merge(saved)
		}
	}

	cred = cred.Merge(auth.Credential{ClientID: cfg.Auth.ClientID, ClientSecret: cfg.Auth.ClientSecret})

	if err := cred.Validate(); err != nil {
		return auth.Credential{}, err
	}

	logger.Debug("resolved credential", slog.String("credential", cred.String()))

	return cred, nil
}

func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ledger.Store, error) {
	if cfg.Ledger.Path == "" {
		return nil, errors.New("ledger enabled but no path configured (set [ledger] path or enabled = false)")
	}

	return ledger.Open(ctx, cfg.Ledger.Path, logger)
}

// newHTTPClient returns a client without an overall Timeout: the dataspace
// client bounds each attempt itself so multi-gigabyte bodies are not cut off.
func newHTTPClient(maxConns int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if maxConns > transport.MaxIdleConnsPerHost {
		transport.MaxIdleConnsPerHost = maxConns
	}

	return &http.Client{Transport: transport}
}
