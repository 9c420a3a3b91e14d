package transfer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tonimelisma/cdse-get/internal/dataspace"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Parallel enables the worker pool; false downloads in input order.
	Parallel bool
	Workers  int
	Progress ProgressFunc
	Sink     OutcomeSink
	RunID    string // generated when empty
}

// Pool downloads a batch with a fixed number of worker goroutines pulling
// from a shared queue, or sequentially.
type Pool struct {
	dl     *Downloader
	opts   PoolOptions
	logger *slog.Logger
}

// NewPool creates a Pool over dl.
func NewPool(dl *Downloader, opts PoolOptions, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	return &Pool{dl: dl, opts: opts, logger: logger}
}

// Run downloads every asset and returns the report. One asset's failure
// never stops the others. On cancellation no new asset is started, assets
// in flight are abandoned without an outcome, and the partial report is
// returned together with the context error. An authentication failure
// aborts the batch the same way and is returned as is.
func (p *Pool) Run(ctx context.Context, assets []*dataspace.Asset) (*Report, error) {
	b, batchCtx := newBatch(ctx, p.dl, p.opts.RunID, p.opts.Sink,
		newTracker(p.opts.Progress, false, assets), len(assets), p.logger)

	if !p.opts.Parallel {
		b.logger.Info("starting sequential batch", slog.Int("assets", len(assets)))

		for _, a := range assets {
			if batchCtx.Err() != nil {
				break
			}

			if err := b.run(batchCtx, a); err != nil {
				break
			}
		}

		return b.finish(ctx)
	}

	workers := max(min(p.opts.Workers, len(assets)), 1)

	b.logger.Info("starting worker pool",
		slog.Int("assets", len(assets)),
		slog.Int("workers", workers),
	)

	jobs := make(chan *dataspace.Asset)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for a := range jobs {
				// A batch-stopping error is already held in b.fatal.
				_ = b.run(batchCtx, a)
			}
		}()
	}

feed:
	for _, a := range assets {
		select {
		case jobs <- a:
		case <-batchCtx.Done():
			break feed
		}
	}

	close(jobs)
	wg.Wait()

	return b.finish(ctx)
}
