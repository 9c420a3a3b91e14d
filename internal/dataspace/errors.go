// Package dataspace provides an HTTP client for the Copernicus Data Space
// catalog and transfer endpoints with bearer authentication, retry with
// exponential backoff, and error classification.
package dataspace

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, dataspace.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("dataspace: bad request")
	ErrUnauthorized = errors.New("dataspace: unauthorized")
	ErrForbidden    = errors.New("dataspace: forbidden")
	ErrNotFound     = errors.New("dataspace: not found")
	ErrThrottled    = errors.New("dataspace: throttled")
	ErrServerError  = errors.New("dataspace: server error")
	ErrUnexpected   = errors.New("dataspace: unexpected status")
)

// ErrTimeout marks an attempt abandoned because the server stopped
// responding within the configured request timeout.
var ErrTimeout = errors.New("dataspace: request timed out")

// ErrNoLocator is returned when the catalog has no product matching an
// asset's name, so no transfer URL can be built.
var ErrNoLocator = errors.New("dataspace: no backend locator for asset")

// HTTPError wraps a sentinel error with the HTTP status code and the
// response body for debugging.
type HTTPError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("dataspace: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// TransferError is returned by Client.Do when a request fails for good:
// either a non-retryable status or the retry budget ran out. Err is the
// last observed failure (an *HTTPError or a network error), never a
// generic "retries exhausted" placeholder.
type TransferError struct {
	Method   string
	Path     string // URL path only; query strings may carry signed parameters
	Attempts int
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("dataspace: %s %s failed after %d attempt(s): %v", e.Method, e.Path, e.Attempts, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of the last attempt, or 0 when the
// last attempt never produced a response.
func (e *TransferError) StatusCode() int {
	var httpErr *HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.StatusCode
	}

	return 0
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpected
	}
}
