// Package testutil provides shared test environment helpers for E2E tests.
// It does not import internal/ so that E2E tests, which only drive the
// built binary, can use it.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) error {
	if _, err := os.Stat(envPath); err != nil {
		return nil
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("loading %s: %w", envPath, err)
	}

	return nil
}

// MissingEnv returns the names in vars that are unset or empty.
func MissingEnv(vars ...string) []string {
	var missing []string

	for _, v := range vars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}

	return missing
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// IsolateHome points HOME and the XDG directories at fresh directories under
// root so a test run never reads or writes the real credential file, config
// or ledger.
func IsolateHome(root string) error {
	dirs := map[string]string{
		"HOME":            filepath.Join(root, "home"),
		"XDG_CONFIG_HOME": filepath.Join(root, "config"),
		"XDG_DATA_HOME":   filepath.Join(root, "data"),
	}

	for env, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}

		if err := os.Setenv(env, dir); err != nil {
			return err
		}
	}

	os.Unsetenv("CDSE_GET_CONFIG")
	os.Unsetenv("CDSE_GET_OUTPUT_DIR")

	return nil
}
