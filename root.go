package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/cdse-get/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// dotEnvFile is loaded from the working directory before config resolution.
const dotEnvFile = ".env"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath   string
	flagClientID     string
	flagClientSecret string
	flagJSON         bool
	flagVerbose      bool
	flagQuiet        bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Config

// resolvedCfgPath is the config file the effective configuration came from
// (it may not exist).
var resolvedCfgPath string

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cdse-get",
		Short:   "Copernicus Data Space product downloader",
		Long:    "Download Copernicus Data Space Ecosystem products listed in a manifest, with retries, checksum verification and skip-existing batches.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagClientID, "client-id", "", "OAuth client ID (overrides env, credential file and config)")
	cmd.PersistentFlags().StringVar(&flagClientSecret, "client-secret", "", "OAuth client secret")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer override
// chain and stores the result in resolvedCfg for use by subcommands. A .env
// file in the working directory is loaded first; it never overrides variables
// that are already set.
func loadConfig(cmd *cobra.Command) error {
	if _, err := config.LoadDotEnv(dotEnvFile); err != nil {
		return err
	}

	cli := cliOverrides(cmd)
	env := config.ReadEnvOverrides()

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	resolvedCfgPath = config.ResolvePath(env, cli)

	return nil
}

// cliOverrides collects the transfer flags the user explicitly set on the
// running command. Unset flags stay nil so the lower layers apply.
func cliOverrides(cmd *cobra.Command) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	if changed(cmd, "output-dir") {
		cli.OutputDir = &flagOutputDir
	}

	if changed(cmd, "mode") {
		cli.Mode = &flagMode
	}

	if changed(cmd, "workers") {
		cli.Workers = &flagWorkers
	}

	if changed(cmd, "skip-existing") {
		cli.SkipExisting = &flagSkipExisting
	}

	if changed(cmd, "no-verify") {
		verify := !flagNoVerify
		cli.VerifyChecksum = &verify
	}

	if changed(cmd, "sequential") {
		parallel := !flagSequential
		cli.Parallel = &parallel
	}

	return cli
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch strings.ToLower(resolvedCfg.Logging.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
