package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/cdse-get/internal/auth"
	"github.com/tonimelisma/cdse-get/internal/dataspace"
)

// OutcomeSink persists outcomes as they are produced. *ledger.Store
// satisfies it.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, runID string, o Outcome) error
}

// batch is the state shared by the workers of one orchestration call. Both
// orchestrators drive assets through batch.run, so skip, failure capture
// and abort rules cannot drift between them.
type batch struct {
	dl       *Downloader
	sink     OutcomeSink
	progress *tracker
	logger   *slog.Logger
	total    int

	mu     sync.Mutex
	report *Report
	fatal  error

	cancel context.CancelFunc
}

func newBatch(
	ctx context.Context, dl *Downloader, runID string, sink OutcomeSink,
	progress *tracker, total int, logger *slog.Logger,
) (*batch, context.Context) {
	if runID == "" {
		runID = uuid.NewString()
	}

	batchCtx, cancel := context.WithCancel(ctx)

	return &batch{
		dl:       dl,
		sink:     sink,
		progress: progress,
		logger:   logger.With(slog.String("run_id", runID)),
		total:    total,
		report: &Report{
			RunID:    runID,
			Started:  time.Now(),
			Outcomes: make([]Outcome, 0, total),
		},
		cancel: cancel,
	}, batchCtx
}

// run downloads one asset and records its outcome. It returns a non-nil
// error only for an authentication failure, after canceling the batch.
// Assets canceled mid-flight leave no outcome.
func (b *batch) run(ctx context.Context, a *dataspace.Asset) (err error) {
	if ctx.Err() != nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic during download",
				slog.String("asset_id", a.ID),
				slog.Any("panic", r),
			)
			b.record(ctx, a, Outcome{
				AssetID: a.ID,
				Name:    a.DisplayName(),
				Status:  StatusFailed,
				Kind:    KindTransfer,
				Err:     fmt.Errorf("transfer: panic: %v", r),
			})

			err = nil
		}
	}()

	out, dlErr := b.dl.Download(ctx, a, b.progress.chunkFunc(a))
	if dlErr != nil {
		if auth.IsAuthenticationError(dlErr) {
			b.abort(dlErr)
			return dlErr
		}

		b.logger.Debug("download canceled", slog.String("asset_id", a.ID))

		return nil
	}

	b.record(ctx, a, out)

	return nil
}

func (b *batch) record(ctx context.Context, a *dataspace.Asset, out Outcome) {
	b.mu.Lock()
	b.report.Outcomes = append(b.report.Outcomes, out)
	b.mu.Unlock()

	if out.Status == StatusFailed {
		b.logger.Warn("download failed",
			slog.String("asset_id", out.AssetID),
			slog.String("kind", string(out.Kind)),
			slog.String("error", out.Reason()),
		)
	}

	if b.dl.recorder != nil {
		b.dl.recorder.ObserveOutcome(string(out.Status))
	}

	b.progress.done(a, out)

	if b.sink != nil {
		// The outcome happened; persist it even if the batch is stopping.
		if err := b.sink.RecordOutcome(context.WithoutCancel(ctx), b.report.RunID, out); err != nil {
			b.logger.Warn("failed to record outcome",
				slog.String("asset_id", out.AssetID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// abort stops the batch after a session-wide failure. First error wins.
func (b *batch) abort(err error) {
	b.mu.Lock()
	if b.fatal == nil {
		b.fatal = err
	}
	b.mu.Unlock()

	b.logger.Error("authentication failed, aborting batch", slog.String("error", err.Error()))
	b.cancel()
}

// finish closes the report. parent is the caller's context, used to tell
// an external interrupt from normal completion.
func (b *batch) finish(parent context.Context) (*Report, error) {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.report
	r.Finished = time.Now()

	succeeded, skipped, failedCount := r.Counts()
	b.logger.Info("batch finished",
		slog.Int("assets", b.total),
		slog.Int("succeeded", succeeded),
		slog.Int("skipped", skipped),
		slog.Int("failed", failedCount),
		slog.Duration("elapsed", r.Finished.Sub(r.Started)),
	)

	if b.fatal != nil {
		r.Interrupted = true
		return r, b.fatal
	}

	if err := parent.Err(); err != nil && len(r.Outcomes) < b.total {
		r.Interrupted = true
		return r, fmt.Errorf("transfer: batch interrupted after %d of %d assets: %w", len(r.Outcomes), b.total, err)
	}

	return r, nil
}
