package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for overrides. Client credentials are read by
// the auth package (CDSE_CLIENT_ID, CDSE_CLIENT_SECRET).
const (
	EnvConfig    = "CDSE_GET_CONFIG"
	EnvOutputDir = "CDSE_GET_OUTPUT_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // CDSE_GET_CONFIG: override config file path
	OutputDir  string // CDSE_GET_OUTPUT_DIR: output directory override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		OutputDir:  os.Getenv(EnvOutputDir),
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are never overridden. A missing file is not an
// error; it reports whether a file was loaded.
func LoadDotEnv(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("loading %s: %w", path, err)
	}

	return true, nil
}
