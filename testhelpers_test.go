package main

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // CDSE publishes MD5 checksums
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/cdse-get/internal/auth"
	"github.com/tonimelisma/cdse-get/internal/config"
)

const (
	testClientID     = "sh-test-client"
	testClientSecret = "test-secret"
	testToken        = "test-token"
)

// testEnv points every default path at a temp dir and clears the variables
// the CLI reads, so tests never touch the real home directory.
func testEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv(auth.EnvClientID, "")
	t.Setenv(auth.EnvClientSecret, "")
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvOutputDir, "")

	return home
}

// execute runs the root command with args and returns what it wrote to stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--quiet"}, args...))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

// fakeDataspace serves the token, catalog and zipper endpoints.
type fakeDataspace struct {
	*httptest.Server
	t *testing.T

	mu       sync.Mutex
	products map[string]string // name -> locator
	bodies   map[string][]byte // locator -> payload

	tokenCalls    atomic.Int32
	catalogCalls  atomic.Int32
	transferCalls atomic.Int32
}

func newFakeDataspace(t *testing.T) *fakeDataspace {
	t.Helper()

	f := &fakeDataspace{
		t:        t,
		products: make(map[string]string),
		bodies:   make(map[string][]byte),
	}

	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)

	return f
}

// addProduct registers a product and returns its payload's MD5.
func (f *fakeDataspace) addProduct(name, locator string, size int) string {
	body := bytes.Repeat([]byte(name[:1]), size)

	f.mu.Lock()
	f.products[name+".SAFE"] = locator
	f.bodies[locator] = body
	f.mu.Unlock()

	sum := md5.Sum(body) //nolint:gosec // matches the catalog's algorithm
	return hex.EncodeToString(sum[:])
}

func (f *fakeDataspace) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/token" {
		f.tokenCalls.Add(1)

		if r.PostFormValue("client_id") != testClientID || r.PostFormValue("client_secret") != testClientSecret {
			http.Error(w, `{"error":"unauthorized_client"}`, http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":600}`, testToken)

		return
	}

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case path == "/catalog/Products":
		f.catalogCalls.Add(1)

		filter := r.URL.Query().Get("$filter")
		name := strings.TrimSuffix(strings.TrimPrefix(filter, "Name eq '"), "'")

		value := []map[string]string{}
		if loc, ok := f.products[name]; ok {
			value = append(value, map[string]string{"Id": loc, "Name": name})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"value": value})

	case strings.HasPrefix(path, "/catalog/Products("):
		loc := strings.TrimSuffix(strings.TrimPrefix(path, "/catalog/Products("), ")")

		body, ok := f.bodies[loc]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"Id":            loc,
			"ContentLength": len(body),
			"Online":        true,
			"Footprint":     map[string]any{"type": "Polygon"},
		})

	case strings.HasPrefix(path, "/zipper/Products(") && strings.HasSuffix(path, ")/$value"):
		f.transferCalls.Add(1)

		loc := strings.TrimSuffix(strings.TrimPrefix(path, "/zipper/Products("), ")/$value")

		body, ok := f.bodies[loc]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Write(body)

	default:
		http.NotFound(w, r)
	}
}

// writeConfig writes a config file wired to f and returns its path.
func writeConfig(t *testing.T, f *fakeDataspace, extra string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := fmt.Sprintf(`
[auth]
token_url = %q

[network]
catalog_url = %q
download_url = %q
max_retries = 1
base_delay = "0s"

[ledger]
path = %q
%s`, f.URL+"/token", f.URL+"/catalog", f.URL+"/zipper", filepath.Join(dir, "ledger.db"), extra)

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
