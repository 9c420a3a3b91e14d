package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <locator>",
		Short: "Show catalog metadata for a product locator",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	session, err := NewDataspaceSession(ctx, resolvedCfg, sessionOptions{NoLedger: true}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	info, err := session.Client.ProductInfo(ctx, args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(info)
	}

	printInfoTable(cmd.OutOrStdout(), info)

	return nil
}

// printInfoTable lists the scalar top-level fields, sorted by key. Nested
// values (footprints, attribute lists) are only shown with --json.
func printInfoTable(w io.Writer, info map[string]any) {
	keys := make([]string, 0, len(info))

	for k, v := range info {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprint(info[k])})
	}

	printTable(w, []string{"FIELD", "VALUE"}, rows)
}
