package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/semaphore"
)

// Session defaults.
const (
	DefaultTokenURL      = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	DefaultTimeout       = 60 * time.Second
	DefaultSafetyMargin  = 60 * time.Second
	defaultTokenLifetime = 600 * time.Second
)

// Recorder observes token endpoint round trips. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveTokenRefresh(success bool)
}

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	TokenURL     string
	Timeout      time.Duration // bound on one token endpoint exchange
	SafetyMargin time.Duration // refresh when the token expires within this window
	HTTPClient   *http.Client
	Recorder     Recorder
}

// Session holds the current bearer token for one credential. It is safe for
// concurrent use. The token value is never logged.
type Session struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
	timeout    time.Duration
	margin     time.Duration
	recorder   Recorder
	logger     *slog.Logger

	// refresh serializes token endpoint exchanges. A weighted semaphore
	// instead of a mutex so waiting callers still honor ctx.
	refresh *semaphore.Weighted

	mu     sync.Mutex
	token  string
	expiry time.Time
	// tokenMargin is the refresh window for the cached token. It equals
	// margin unless the server issued a token that lives no longer than it.
	tokenMargin time.Duration

	// nowFunc returns the current time. Tests override it to move the clock.
	nowFunc func() time.Time
}

// NewSession validates cred and returns a session with no token yet. The
// first Acquire performs the exchange.
func NewSession(cred Credential, opts Options, logger *slog.Logger) (*Session, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.SafetyMargin < 0 {
		return nil, fmt.Errorf("auth: safety margin must be non-negative, got %s", opts.SafetyMargin)
	}

	if opts.SafetyMargin == 0 {
		opts.SafetyMargin = DefaultSafetyMargin
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Session{
		cfg: clientcredentials.Config{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		margin:     opts.SafetyMargin,
		recorder:   opts.Recorder,
		logger:     logger,
		refresh:    semaphore.NewWeighted(1),
		nowFunc:    time.Now,
	}, nil
}

// Acquire returns a bearer token valid for at least the safety margin.
// Concurrent callers that find the token stale trigger exactly one
// exchange; the others wait for it and reuse its result. Failures are
// reported as *AuthenticationError.
func (s *Session) Acquire(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	if err := s.refresh.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("auth: waiting for token refresh: %w", err)
	}
	defer s.refresh.Release(1)

	// Another caller may have refreshed while we waited.
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	return s.exchange(ctx)
}

// Decorate sets the Authorization header on req with a current token.
func (s *Session) Decorate(ctx context.Context, req *http.Request) error {
	tok, err := s.Acquire(ctx)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+tok)

	return nil
}

// Invalidate drops the cached token so the next Acquire exchanges again.
// Called when the server rejects a token before its recorded expiry.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.expiry = time.Time{}
	s.tokenMargin = 0
}

// Expiry returns the expiry of the cached token, zero if none.
func (s *Session) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expiry
}

func (s *Session) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" || !s.nowFunc().Add(s.tokenMargin).Before(s.expiry) {
		return "", false
	}

	return s.token, true
}

// exchange performs one client-credentials grant. Caller holds s.refresh.
func (s *Session) exchange(parent context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	s.logger.Debug("requesting access token", slog.String("client_id", s.cfg.ClientID))

	tok, err := s.cfg.Token(ctx)
	if err != nil {
		s.observe(false)

		if parent.Err() != nil {
			return "", fmt.Errorf("auth: token request canceled: %w", parent.Err())
		}

		return "", s.classify(ctx, err)
	}

	lifetime := defaultTokenLifetime
	if !tok.Expiry.IsZero() {
		lifetime = time.Until(tok.Expiry)
	}

	margin := s.margin
	if lifetime <= margin {
		// The token would already be stale; refresh at half its lifetime.
		margin = lifetime / 2
		s.logger.Warn("token lifetime within safety margin, shortening margin for this token",
			slog.Duration("lifetime", lifetime.Round(time.Second)),
			slog.Duration("safety_margin", s.margin),
			slog.Duration("effective_margin", margin.Round(time.Second)),
		)
	}

	expiry := s.nowFunc().Add(lifetime)

	s.mu.Lock()
	s.token = tok.AccessToken
	s.expiry = expiry
	s.tokenMargin = margin
	s.mu.Unlock()

	s.observe(true)
	s.logger.Info("access token refreshed",
		slog.Duration("lifetime", lifetime.Round(time.Second)),
	)

	return tok.AccessToken, nil
}

func (s *Session) classify(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr := &AuthenticationError{Reason: "token endpoint rejected credentials", Err: err}
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}

		s.logger.Error("token request rejected",
			slog.Int("status", authErr.StatusCode),
			slog.String("error_code", retrieveErr.ErrorCode),
		)

		return authErr
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &AuthenticationError{Reason: fmt.Sprintf("token endpoint timed out after %s", s.timeout), Err: err}
	}

	s.logger.Error("token request failed", slog.String("error", err.Error()))

	return &AuthenticationError{Reason: "token endpoint unreachable", Err: err}
}

func (s *Session) observe(success bool) {
	if s.recorder != nil {
		s.recorder.ObserveTokenRefresh(success)
	}
}
