package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/tonimelisma/cdse-get/internal/transfer"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
// Negative sizes mean unknown.
func formatSize(bytes int64) string {
	switch {
	case bytes < 0:
		return "?"
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// progressInterval throttles redraws of the progress line.
const progressInterval = 200 * time.Millisecond

// progressPrinter renders a single self-overwriting progress line. It is
// only used when stderr is a terminal.
type progressPrinter struct {
	w    io.Writer
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// newProgressFunc returns a progress callback for the CLI, or nil when
// progress should not be drawn (quiet mode, JSON output, or stderr is not a
// terminal).
func newProgressFunc() transfer.ProgressFunc {
	if flagQuiet || flagJSON {
		return nil
	}

	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}

	p := &progressPrinter{w: os.Stderr, now: time.Now}

	return p.update
}

func (p *progressPrinter) update(ev transfer.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !ev.Done && now.Sub(p.last) < progressInterval {
		return
	}

	p.last = now

	fmt.Fprintf(p.w, "\r\033[K%s", progressLine(ev))

	// Without a batch aggregate every finished asset keeps its own line.
	if ev.Done && (ev.Overall.Assets == 0 || ev.Overall.Completed == ev.Overall.Assets) {
		fmt.Fprintln(p.w)
	}
}

// progressLine formats one event: the asset, its bytes, and the batch
// aggregate when the orchestrator provides one.
func progressLine(ev transfer.ProgressEvent) string {
	var b strings.Builder

	if ev.Overall.Assets > 0 {
		fmt.Fprintf(&b, "[%d/%d] ", ev.Overall.Completed, ev.Overall.Assets)
	}

	name := ev.Name
	if name == "" {
		name = ev.AssetID
	}

	fmt.Fprintf(&b, "%s %s", name, formatSize(ev.Bytes))

	if ev.Total > 0 {
		fmt.Fprintf(&b, " / %s (%d%%)", formatSize(ev.Total), ev.Bytes*100/ev.Total)
	}

	if ev.Done {
		b.WriteString(" done")
	}

	if ev.Overall.Assets > 0 && ev.Overall.Total > 0 {
		fmt.Fprintf(&b, "  total %s / %s", formatSize(ev.Overall.Bytes), formatSize(ev.Overall.Total))
	}

	return b.String()
}
