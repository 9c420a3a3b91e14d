package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/cdse-get/internal/config"
	"github.com/tonimelisma/cdse-get/internal/dataspace"
	"github.com/tonimelisma/cdse-get/internal/transfer"
)

// Download flags, bound in newDownloadCmd() and read by cliOverrides().
var (
	flagOutputDir    string
	flagMode         string
	flagWorkers      int
	flagSkipExisting bool
	flagNoVerify     bool
	flagSequential   bool
	flagMetricsAddr  string
)

// errAssetsFailed is returned after the report has been printed when at
// least one asset failed. main exits 1 without repeating the error.
var errAssetsFailed = errors.New("one or more assets failed")

// stdinArg names standard input as the manifest source.
const stdinArg = "-"

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [manifest.json|-]",
		Short: "Download every asset listed in a manifest",
		Long: `Download the assets listed in a JSON manifest (a file, or "-" for stdin).

Each manifest entry describes one product:

  {"id": "...", "name": "S2A_MSIL2A_...", "size": 123, "checksum": "MD5:...",
   "locator": "...", "download_url": "...", "file_name": "..."}

Only "id" or "name" is required. One failed asset never stops the others; the
exit status is 1 if any asset failed. The first Ctrl-C stops the batch and
prints the partial report; a second one forces exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDownload,
	}

	cmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "directory for downloaded files")
	cmd.Flags().StringVar(&flagMode, "mode", "", "orchestration mode: blocking or cooperative")
	cmd.Flags().IntVarP(&flagWorkers, "workers", "w", 0, "maximum concurrent transfers")
	cmd.Flags().BoolVar(&flagSkipExisting, "skip-existing", false, "skip assets whose file already exists with the expected size")
	cmd.Flags().BoolVar(&flagNoVerify, "no-verify", false, "do not verify size and checksum after transfer")
	cmd.Flags().BoolVar(&flagSequential, "sequential", false, "download one asset at a time, in manifest order (blocking mode)")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	cfg := resolvedCfg

	assets, err := loadManifest(cmd, args)
	if err != nil {
		return err
	}

	if len(assets) == 0 {
		statusf("Manifest lists no assets.\n")
		return nil
	}

	release, err := lockOutputDir(cfg.Transfers.OutputDir)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := shutdownContext(cmd.Context(), logger)
	defer stop()

	session, err := NewDataspaceSession(ctx, cfg, sessionOptions{
		MetricsAddr: flagMetricsAddr,
		MaxConns:    maxTransfers(cfg),
	}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	limiter, err := transfer.NewBandwidthLimiter(cfg.Transfers.BandwidthLimit, logger)
	if err != nil {
		return err
	}

	dl := transfer.NewDownloader(session.Client, transfer.Options{
		OutputDir:      cfg.Transfers.OutputDir,
		SkipExisting:   cfg.Transfers.SkipExisting,
		VerifyChecksum: cfg.Transfers.VerifyChecksum,
		ChunkSize:      cfg.Transfers.ChunkSizeBytes(),
		Limiter:        limiter,
		Recorder:       session.Metrics,
	}, logger)

	var sink transfer.OutcomeSink
	if session.Ledger != nil {
		sink = session.Ledger
	}

	logger.Info("starting download",
		slog.Int("assets", len(assets)),
		slog.String("mode", cfg.Transfers.Mode),
		slog.String("output_dir", cfg.Transfers.OutputDir),
	)

	report, runErr := newOrchestrator(cfg, dl, sink, newProgressFunc(), logger).Run(ctx, assets)
	if report != nil {
		if err := printReport(cmd.OutOrStdout(), report, assets); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}

	if report.HasFailures() {
		return errAssetsFailed
	}

	return nil
}

// orchestrator runs a batch. *transfer.Pool and *transfer.Fanout satisfy it.
type orchestrator interface {
	Run(ctx context.Context, assets []*dataspace.Asset) (*transfer.Report, error)
}

func newOrchestrator(
	cfg *config.Config, dl *transfer.Downloader, sink transfer.OutcomeSink,
	progress transfer.ProgressFunc, logger *slog.Logger,
) orchestrator {
	if cfg.Transfers.Mode == config.ModeCooperative {
		return transfer.NewFanout(dl, transfer.FanoutOptions{
			MaxConcurrent: cfg.Transfers.MaxConcurrent,
			Progress:      progress,
			Sink:          sink,
		}, logger)
	}

	return transfer.NewPool(dl, transfer.PoolOptions{
		Parallel: cfg.Transfers.Parallel,
		Workers:  cfg.Transfers.MaxWorkers,
		Progress: progress,
		Sink:     sink,
	}, logger)
}

// maxTransfers is the number of transfers the configured mode may open at
// once.
func maxTransfers(cfg *config.Config) int {
	switch {
	case cfg.Transfers.Mode == config.ModeCooperative:
		return cfg.Transfers.MaxConcurrent
	case cfg.Transfers.Parallel:
		return cfg.Transfers.MaxWorkers
	default:
		return 1
	}
}

// manifestEntry is one asset in a download manifest, as produced by the
// catalog search layer.
type manifestEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Locator     string `json:"locator,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
}

// loadManifest reads the manifest named by args, or stdin.
func loadManifest(cmd *cobra.Command, args []string) ([]*dataspace.Asset, error) {
	if len(args) == 0 || args[0] == stdinArg {
		return readManifest(cmd.InOrStdin())
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	assets, err := readManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", args[0], err)
	}

	return assets, nil
}

// readManifest decodes a JSON array of manifest entries. Every entry needs
// an id or a name, and ids must be unique: two entries with the same
// identity would race for the same output file.
func readManifest(r io.Reader) ([]*dataspace.Asset, error) {
	var entries []manifestEntry

	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	assets := make([]*dataspace.Asset, 0, len(entries))
	seen := make(map[string]int, len(entries))

	for i, e := range entries {
		if e.ID == "" {
			e.ID = e.Name
		}

		if e.ID == "" {
			return nil, fmt.Errorf("manifest entry %d: id or name is required", i)
		}

		if prev, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("manifest entry %d: duplicate id %q (also entry %d)", i, e.ID, prev)
		}

		seen[e.ID] = i

		sum, err := dataspace.ParseChecksum(e.Checksum)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}

		a := &dataspace.Asset{
			ID:          e.ID,
			Name:        e.Name,
			Size:        e.Size,
			Checksum:    sum,
			DownloadURL: e.DownloadURL,
			FileName:    e.FileName,
		}
		a.CacheLocator(e.Locator)

		assets = append(assets, a)
	}

	return assets, nil
}

// reportJSON is the JSON schema for `download --json`.
type reportJSON struct {
	RunID       string        `json:"run_id"`
	Started     time.Time     `json:"started"`
	Finished    time.Time     `json:"finished"`
	Interrupted bool          `json:"interrupted"`
	Succeeded   int           `json:"succeeded"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Bytes       int64         `json:"bytes"`
	Outcomes    []outcomeJSON `json:"outcomes"`
}

type outcomeJSON struct {
	AssetID    string `json:"asset_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Path       string `json:"path,omitempty"`
	Bytes      int64  `json:"bytes"`
	Kind       string `json:"failure_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// printReport writes the report in manifest order. Assets that never reached
// a terminal state (interrupted batch) are left out.
func printReport(w io.Writer, report *transfer.Report, assets []*dataspace.Asset) error {
	ordered := make([]transfer.Outcome, 0, len(report.Outcomes))

	for _, a := range assets {
		if out, ok := report.Lookup(a.ID); ok {
			ordered = append(ordered, out)
		}
	}

	if flagJSON {
		return printReportJSON(w, report, ordered)
	}

	printReportTable(w, report, ordered)

	return nil
}

func printReportJSON(w io.Writer, report *transfer.Report, ordered []transfer.Outcome) error {
	succeeded, skipped, failed := report.Counts()

	out := reportJSON{
		RunID:       report.RunID,
		Started:     report.Started,
		Finished:    report.Finished,
		Interrupted: report.Interrupted,
		Succeeded:   succeeded,
		Skipped:     skipped,
		Failed:      failed,
		Bytes:       report.BytesWritten(),
		Outcomes:    make([]outcomeJSON, 0, len(ordered)),
	}

	for i := range ordered {
		o := &ordered[i]
		out.Outcomes = append(out.Outcomes, outcomeJSON{
			AssetID:    o.AssetID,
			Name:       o.Name,
			Status:     string(o.Status),
			Path:       o.Path,
			Bytes:      o.BytesWritten,
			Kind:       string(o.Kind),
			Error:      o.Reason(),
			DurationMS: o.Duration.Milliseconds(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printReportTable(w io.Writer, report *transfer.Report, ordered []transfer.Outcome) {
	headers := []string{"NAME", "STATUS", "SIZE", "TIME", "DETAIL"}
	rows := make([][]string, 0, len(ordered))

	for i := range ordered {
		o := &ordered[i]

		detail := o.Path
		if o.Status == transfer.StatusFailed {
			detail = string(o.Kind) + ": " + o.Reason()
		}

		rows = append(rows, []string{
			o.Name,
			string(o.Status),
			formatSize(o.BytesWritten),
			formatDuration(o.Duration),
			detail,
		})
	}

	if len(rows) > 0 {
		printTable(w, headers, rows)
		fmt.Fprintln(w)
	}

	succeeded, skipped, failed := report.Counts()
	fmt.Fprintf(w, "%d succeeded, %d skipped, %d failed; %s in %s\n",
		succeeded, skipped, failed,
		formatSize(report.BytesWritten()),
		formatDuration(report.Finished.Sub(report.Started)),
	)

	if report.Interrupted {
		fmt.Fprintln(w, "Batch interrupted: assets not listed were not downloaded.")
	}
}
