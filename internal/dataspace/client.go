package dataspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

// Endpoint and transport defaults.
const (
	DefaultCatalogURL  = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	DefaultDownloadURL = "https://zipper.dataspace.copernicus.eu/odata/v1"
	DefaultTimeout     = 60 * time.Second
	defaultUserAgent   = "cdse-get/0.1"
	maxErrorBody       = 64 * 1024
)

// Authorizer attaches credentials to outgoing requests. Defined at the
// consumer; *auth.Session is the real implementation.
type Authorizer interface {
	// Decorate sets the Authorization header. Errors are never retried.
	Decorate(ctx context.Context, req *http.Request) error
	// Invalidate forces the next Decorate to fetch a fresh credential.
	Invalidate()
}

// Recorder observes request-level events. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveRequest(outcome string)
	ObserveRetry(reason string)
}

// LocatorStore is a persistent locator cache keyed by asset identity.
// *ledger.Store satisfies it.
type LocatorStore interface {
	Locator(ctx context.Context, assetID string) (string, bool, error)
	SaveLocator(ctx context.Context, assetID, locator string) error
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	CatalogURL  string
	DownloadURL string
	Policy      RetryPolicy
	Timeout     time.Duration // per attempt: time to headers and max idle gap while reading a body
	UserAgent   string
	Locators    LocatorStore
	Recorder    Recorder
}

// Client executes authenticated requests against the catalog and transfer
// endpoints. One Client is shared by all concurrent downloads: it holds no
// per-request state and the underlying http.Client pools connections.
type Client struct {
	catalogURL  string
	downloadURL string
	httpClient  *http.Client
	auth        Authorizer
	policy      RetryPolicy
	timeout     time.Duration
	userAgent   string
	locators    LocatorStore
	recorder    Recorder
	logger      *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. httpClient should not set Timeout: the client
// enforces its own per-attempt timeout so that multi-hour bodies are not cut
// off while still detecting stalls.
func NewClient(httpClient *http.Client, authorizer Authorizer, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if authorizer == nil {
		return nil, errors.New("dataspace: authorizer must not be nil")
	}

	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = DefaultRetryPolicy()
	}

	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	if opts.CatalogURL == "" {
		opts.CatalogURL = DefaultCatalogURL
	}

	if opts.DownloadURL == "" {
		opts.DownloadURL = DefaultDownloadURL
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	return &Client{
		catalogURL:  opts.CatalogURL,
		downloadURL: opts.DownloadURL,
		httpClient:  httpClient,
		auth:        authorizer,
		policy:      opts.Policy,
		timeout:     opts.Timeout,
		userAgent:   opts.UserAgent,
		locators:    opts.Locators,
		recorder:    opts.Recorder,
		logger:      logger,
		sleepFunc:   timeSleep,
	}, nil
}

// Do executes one logical request with retry. The request is re-decorated
// with a fresh bearer token before every attempt. On success the caller
// must close the response body. On failure the error is a *TransferError
// wrapping the last observed failure, an authorization error from the
// Authorizer, or a wrapped context error.
func (c *Client) Do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	path := redactURL(rawURL)
	reauthorized := false

	var lastErr error

	attempt := 0
	for {
		resp, err := c.doOnce(ctx, method, rawURL)

		var (
			wait   time.Duration
			reason string
		)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("dataspace: request canceled: %w", ctx.Err())
			}

			var decorateErr *decorateError
			if errors.As(err, &decorateErr) {
				return nil, decorateErr.err
			}

			lastErr = err
			reason = "network"

		case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
			)
			c.observeRequest("success")

			return resp, nil

		default:
			httpErr := readHTTPError(resp)

			// A rejected token is renewed once without consuming an attempt.
			if resp.StatusCode == http.StatusUnauthorized && !reauthorized {
				reauthorized = true
				c.auth.Invalidate()
				c.logger.Warn("token rejected, renewing and retrying",
					slog.String("method", method),
					slog.String("path", path),
				)

				continue
			}

			if !c.policy.RetryableStatus(resp.StatusCode) {
				c.observeRequest("failed")

				return nil, &TransferError{Method: method, Path: path, Attempts: attempt + 1, Err: httpErr}
			}

			lastErr = httpErr
			wait = retryAfter(resp)
			reason = strconv.Itoa(resp.StatusCode)
		}

		if attempt+1 >= c.policy.MaxAttempts {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempts", attempt+1),
				slog.String("error", lastErr.Error()),
			)
			c.observeRequest("exhausted")

			return nil, &TransferError{Method: method, Path: path, Attempts: attempt + 1, Err: lastErr}
		}

		backoff := c.policy.Backoff(attempt)
		if wait > backoff {
			backoff = wait
		}

		c.logger.Warn("retrying after transient failure",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", lastErr.Error()),
		)

		if c.recorder != nil {
			c.recorder.ObserveRetry(reason)
		}

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil, fmt.Errorf("dataspace: request canceled: %w", sleepErr)
		}

		attempt++
	}
}

// decorateError marks a failure to authorize the request so Do can tell it
// apart from a transport failure.
type decorateError struct {
	err error
}

func (e *decorateError) Error() string { return e.err.Error() }

func (e *decorateError) Unwrap() error { return e.err }

// doOnce executes a single attempt. The attempt runs under its own context
// that is canceled if headers do not arrive within c.timeout, and later if
// the body stalls for longer than c.timeout between reads.
func (c *Client) doOnce(ctx context.Context, method, rawURL string) (*http.Response, error) {
	attemptCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, http.NoBody)
	if err != nil {
		cancel()
		return nil, &decorateError{err: fmt.Errorf("dataspace: creating request: %w", err)}
	}

	req.Header.Set("User-Agent", c.userAgent)

	if err := c.auth.Decorate(ctx, req); err != nil {
		cancel()
		return nil, &decorateError{err: err}
	}

	var fired atomic.Bool

	timer := time.AfterFunc(c.timeout, func() {
		fired.Store(true)
		cancel()
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		timer.Stop()
		cancel()

		if fired.Load() {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)
		}

		return nil, err
	}

	if !timer.Stop() {
		resp.Body.Close()
		cancel()

		return nil, fmt.Errorf("%w after %s waiting for response", ErrTimeout, c.timeout)
	}

	resp.Body = newIdleTimeoutBody(resp.Body, c.timeout, cancel)

	return resp, nil
}

func (c *Client) observeRequest(outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveRequest(outcome)
	}
}

// readHTTPError drains and closes an error response into an *HTTPError.
func readHTTPError(resp *http.Response) *HTTPError {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	if readErr != nil {
		body = []byte("(failed to read response body)")
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// redactURL strips the query string so signed parameters never reach logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "(invalid url)"
	}

	return u.Host + u.Path
}

// idleTimeoutBody cancels the attempt context when no Read completes within
// idle, turning a silently stalled transfer into a retryable-class error.
type idleTimeoutBody struct {
	rc     io.ReadCloser
	idle   time.Duration
	timer  *time.Timer
	cancel context.CancelFunc
	fired  atomic.Bool
}

func newIdleTimeoutBody(rc io.ReadCloser, idle time.Duration, cancel context.CancelFunc) *idleTimeoutBody {
	b := &idleTimeoutBody{rc: rc, idle: idle, cancel: cancel}
	b.timer = time.AfterFunc(idle, func() {
		b.fired.Store(true)
		cancel()
	})

	return b
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && b.fired.Load() {
		return n, fmt.Errorf("%w: no data for %s: %w", ErrTimeout, b.idle, err)
	}

	b.timer.Reset(b.idle)

	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	err := b.rc.Close()
	b.cancel()

	return err
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
