package dataspace

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"
)

// Retry policy defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
)

// DefaultRetryableStatuses are the statuses treated as transient.
var DefaultRetryableStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RetryPolicy decides how often and how long to wait before re-sending a
// failed request. Connection-level failures (timeouts, resets, DNS) are
// always retryable; statuses only when listed in RetryableStatuses.
// Treat a RetryPolicy as immutable once handed to a Client.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	RetryableStatuses []int
}

// DefaultRetryPolicy returns 3 attempts, 1s base delay, {429,502,503,504}.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		RetryableStatuses: slices.Clone(DefaultRetryableStatuses),
	}
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("dataspace: retry policy: max attempts must be >= 1, got %d", p.MaxAttempts)
	}

	if p.BaseDelay < 0 {
		return fmt.Errorf("dataspace: retry policy: base delay must be non-negative, got %s", p.BaseDelay)
	}

	return nil
}

// RetryableStatus reports whether the status code should be retried.
func (p RetryPolicy) RetryableStatus(code int) bool {
	return slices.Contains(p.RetryableStatuses, code)
}

// Backoff returns the wait after the attempt with the given zero-based
// index failed: BaseDelay * 2^attempt. No jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

// retryAfter returns the Retry-After delay of a 429 response, or 0.
// Only the delay-seconds form is honored.
func retryAfter(resp *http.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}

	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}

	seconds, err := strconv.Atoi(ra)
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
