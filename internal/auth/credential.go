// Package auth manages OAuth2 client-credentials bearer tokens for the
// Copernicus Data Space identity service. A Session caches one token,
// shares it between concurrent downloads, and refreshes it shortly before
// it expires with at most one refresh in flight.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by CredentialFromEnv.
const (
	EnvClientID     = "CDSE_CLIENT_ID"
	EnvClientSecret = "CDSE_CLIENT_SECRET"
)

// ErrMissingCredentials is wrapped by AuthenticationError when no client ID
// or secret is available.
var ErrMissingCredentials = errors.New("auth: missing client credentials")

// Credential is an OAuth2 client ID and secret pair. The secret never
// appears in String output or logs.
type Credential struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// CredentialFromEnv reads CDSE_CLIENT_ID and CDSE_CLIENT_SECRET.
// Missing variables yield empty fields; call Validate to check.
func CredentialFromEnv() Credential {
	return Credential{
		ClientID:     strings.TrimSpace(os.Getenv(EnvClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(EnvClientSecret)),
	}
}

// Validate returns an *AuthenticationError wrapping ErrMissingCredentials
// when either half of the pair is empty.
func (c Credential) Validate() error {
	var missing []string

	if c.ClientID == "" {
		missing = append(missing, EnvClientID)
	}

	if c.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}

	if len(missing) == 0 {
		return nil
	}

	return &AuthenticationError{
		Reason: "set " + strings.Join(missing, " and ") + " or run 'cdse-get login'",
		Err:    ErrMissingCredentials,
	}
}

// Merge fills empty fields of c from other.
func (c Credential) Merge(other Credential) Credential {
	if c.ClientID == "" {
		c.ClientID = other.ClientID
	}

	if c.ClientSecret == "" {
		c.ClientSecret = other.ClientSecret
	}

	return c
}

func (c Credential) String() string {
	if c.ClientSecret == "" {
		return fmt.Sprintf("client %q (no secret)", c.ClientID)
	}

	return fmt.Sprintf("client %q (secret set)", c.ClientID)
}

// AuthenticationError reports that a bearer token could not be obtained:
// missing credentials, rejected credentials, or an unreachable identity
// endpoint. It is fatal for a whole batch of downloads.
type AuthenticationError struct {
	Reason     string
	StatusCode int // token endpoint HTTP status, 0 if none
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := "auth: " + e.Reason
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError reports whether err carries an *AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
