package main

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/cdse-get/internal/ledger"
	"github.com/tonimelisma/cdse-get/internal/transfer"
)

const defaultHistoryLimit = 20

var flagHistoryLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded download outcomes, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", defaultHistoryLimit, "number of entries to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	if !resolvedCfg.Ledger.Enabled {
		return errors.New("the ledger is disabled ([ledger] enabled = false)")
	}

	store, err := openLedger(ctx, resolvedCfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.History(ctx, flagHistoryLimit)
	if err != nil {
		return err
	}

	if flagJSON {
		return printHistoryJSON(cmd.OutOrStdout(), entries)
	}

	if len(entries) == 0 {
		statusf("No downloads recorded.\n")
		return nil
	}

	printHistoryTable(cmd.OutOrStdout(), entries)

	return nil
}

// historyJSON is the JSON schema for one `history --json` entry.
type historyJSON struct {
	RecordedAt  time.Time `json:"recorded_at"`
	RunID       string    `json:"run_id"`
	AssetID     string    `json:"asset_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Path        string    `json:"path,omitempty"`
	Bytes       int64     `json:"bytes"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
}

func printHistoryJSON(w io.Writer, entries []ledger.Entry) error {
	out := make([]historyJSON, 0, len(entries))

	for i := range entries {
		e := &entries[i]
		out = append(out, historyJSON{
			RecordedAt:  e.RecordedAt.UTC(),
			RunID:       e.RunID,
			AssetID:     e.AssetID,
			Name:        e.Name,
			Status:      string(e.Status),
			Path:        e.Path,
			Bytes:       e.Bytes,
			FailureKind: string(e.FailureKind),
			Error:       e.Error,
			DurationMS:  e.Duration.Milliseconds(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// runIDPrefix keeps the table narrow; the full id is in --json.
const runIDPrefix = 8

func printHistoryTable(w io.Writer, entries []ledger.Entry) {
	headers := []string{"WHEN", "RUN", "NAME", "STATUS", "SIZE", "DETAIL"}
	rows := make([][]string, 0, len(entries))

	for i := range entries {
		e := &entries[i]

		run := e.RunID
		if len(run) > runIDPrefix {
			run = run[:runIDPrefix]
		}

		detail := e.Path
		if e.Status == transfer.StatusFailed {
			detail = string(e.FailureKind) + ": " + e.Error
		}

		rows = append(rows, []string{
			formatTime(e.RecordedAt),
			run,
			e.Name,
			string(e.Status),
			formatSize(e.Bytes),
			detail,
		})
	}

	printTable(w, headers, rows)
}
