package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values given on the command line. Pointer fields are nil
// when the flag was not specified, so an explicit false or zero still wins.
type CLIOverrides struct {
	ConfigPath     string
	OutputDir      *string
	Mode           *string
	Workers        *int
	Parallel       *bool
	SkipExisting   *bool
	VerifyChecksum *bool
	LogLevel       *string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ResolvePath picks the config file path: CLI > env > default.
func ResolvePath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags. The result
// is validated again after the overrides are applied.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfg, err := LoadOrDefault(ResolvePath(env, cli))
	if err != nil {
		return nil, err
	}

	if env.OutputDir != "" {
		cfg.Transfers.OutputDir = env.OutputDir
	}

	applyCLI(cfg, cli)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	if cli.OutputDir != nil {
		cfg.Transfers.OutputDir = *cli.OutputDir
	}

	if cli.Mode != nil {
		cfg.Transfers.Mode = *cli.Mode
	}

	// --workers bounds whichever orchestrator runs.
	if cli.Workers != nil {
		cfg.Transfers.MaxWorkers = *cli.Workers
		cfg.Transfers.MaxConcurrent = *cli.Workers
	}

	if cli.Parallel != nil {
		cfg.Transfers.Parallel = *cli.Parallel
	}

	if cli.SkipExisting != nil {
		cfg.Transfers.SkipExisting = *cli.SkipExisting
	}

	if cli.VerifyChecksum != nil {
		cfg.Transfers.VerifyChecksum = *cli.VerifyChecksum
	}

	if cli.LogLevel != nil {
		cfg.Logging.LogLevel = *cli.LogLevel
	}
}
