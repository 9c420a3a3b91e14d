package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/cdse-get/internal/transfer"
)

// errVerifyMismatch makes verify exit 1 after the report is printed.
var errVerifyMismatch = errors.New("one or more files failed verification")

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [manifest.json|-]",
		Short: "Verify downloaded files against a manifest",
		Long: `Re-check the files a manifest's assets were downloaded to against their
declared sizes and checksums. Nothing is fetched; no credentials are needed.
Reports missing files, size mismatches, and checksum mismatches.

Exit code 0 if all files verify; exit code 1 if any mismatches are found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runVerify,
	}

	cmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "directory the files were downloaded to")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	assets, err := loadManifest(cmd, args)
	if err != nil {
		return err
	}

	report, err := transfer.VerifyAssets(cmd.Context(), resolvedCfg.Transfers.OutputDir, assets, nil, logger)
	if err != nil {
		return err
	}

	if flagJSON {
		if err := printVerifyJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printVerifyTable(cmd.OutOrStdout(), report)
	}

	if len(report.Mismatches) > 0 {
		return errVerifyMismatch
	}

	return nil
}

func printVerifyJSON(w io.Writer, report *transfer.VerifyReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func printVerifyTable(w io.Writer, report *transfer.VerifyReport) {
	fmt.Fprintf(w, "Verified: %d files\n", report.Verified)

	if len(report.Mismatches) == 0 {
		fmt.Fprintln(w, "All files verified successfully.")
		return
	}

	fmt.Fprintf(w, "Mismatches: %d\n\n", len(report.Mismatches))

	headers := []string{"PATH", "STATUS", "EXPECTED", "ACTUAL"}
	rows := make([][]string, len(report.Mismatches))

	for i := range report.Mismatches {
		m := &report.Mismatches[i]
		rows[i] = []string{m.Path, m.Status, m.Expected, m.Actual}
	}

	printTable(w, headers, rows)
}
