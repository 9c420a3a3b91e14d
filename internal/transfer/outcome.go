package transfer

import (
	"errors"
	"fmt"
	"time"
)

// Status is the terminal state of one asset in a batch.
type Status string

// Outcome statuses.
const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// FailureKind classifies a failed outcome.
type FailureKind string

// Failure kinds. Authentication failures never appear here: they abort the
// whole batch instead.
const (
	KindTransfer  FailureKind = "transfer"
	KindIntegrity FailureKind = "integrity"
	KindLocalIO   FailureKind = "local_io"
)

// Outcome is the result of downloading one asset. Created once and never
// mutated afterwards.
type Outcome struct {
	AssetID      string
	Name         string
	Status       Status
	Path         string
	BytesWritten int64
	Kind         FailureKind // set only when Status is StatusFailed
	Err          error       // set only when Status is StatusFailed
	Duration     time.Duration
}

// Reason returns a one-line failure description, "" for non-failures.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}

	return o.Err.Error()
}

// IntegrityError reports that written bytes do not match the declared size
// or checksum. The temporary file has already been removed.
type IntegrityError struct {
	Path         string
	Algorithm    string
	Expected     string
	Actual       string
	ExpectedSize int64
	ActualSize   int64
}

func (e *IntegrityError) Error() string {
	if e.Algorithm == "" {
		return fmt.Sprintf("transfer: size mismatch for %s: expected %d bytes, got %d", e.Path, e.ExpectedSize, e.ActualSize)
	}

	return fmt.Sprintf("transfer: %s checksum mismatch for %s: expected %s, got %s", e.Algorithm, e.Path, e.Expected, e.Actual)
}

// LocalIOError reports a filesystem failure (disk full, permission denied).
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("transfer: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

// kindOf maps a per-asset error to its FailureKind.
func kindOf(err error) FailureKind {
	var integrityErr *IntegrityError
	if errors.As(err, &integrityErr) {
		return KindIntegrity
	}

	var ioErr *LocalIOError
	if errors.As(err, &ioErr) {
		return KindLocalIO
	}

	return KindTransfer
}

// Report collects outcomes of one orchestration call. Outcomes are in input
// order for sequential runs and completion order otherwise; use Lookup to
// find an asset by identity.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
	// Interrupted is set when cancellation or an authentication failure
	// stopped the batch before every asset reached a terminal state.
	Interrupted bool
}

// Counts returns the number of outcomes per status.
func (r *Report) Counts() (succeeded, skipped, failed int) {
	for i := range r.Outcomes {
		switch r.Outcomes[i].Status {
		case StatusSuccess:
			succeeded++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}

	return succeeded, skipped, failed
}

// HasFailures reports whether any asset failed.
func (r *Report) HasFailures() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// Lookup returns the outcome for an asset id.
func (r *Report) Lookup(assetID string) (Outcome, bool) {
	for i := range r.Outcomes {
		if r.Outcomes[i].AssetID == assetID {
			return r.Outcomes[i], true
		}
	}

	return Outcome{}, false
}

// BytesWritten sums bytes written by successful outcomes.
func (r *Report) BytesWritten() int64 {
	var total int64
	for i := range r.Outcomes {
		total += r.Outcomes[i].BytesWritten
	}

	return total
}
