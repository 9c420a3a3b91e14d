package transfer

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tonimelisma/cdse-get/internal/dataspace"
)

// DefaultMaxConcurrent bounds Fanout when none is configured.
const DefaultMaxConcurrent = 4

// FanoutOptions configures a Fanout.
type FanoutOptions struct {
	MaxConcurrent int
	Progress      ProgressFunc // events carry the batch aggregate in Overall
	Sink          OutcomeSink
	RunID         string
}

// Fanout downloads a batch with one goroutine per asset, admitted through a
// counting semaphore so at most MaxConcurrent transfers are open at once.
// Goroutines park on I/O and on the semaphore, never holding a worker slot
// while waiting to start.
type Fanout struct {
	dl     *Downloader
	opts   FanoutOptions
	logger *slog.Logger
}

// NewFanout creates a Fanout over dl.
func NewFanout(dl *Downloader, opts FanoutOptions, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}

	return &Fanout{dl: dl, opts: opts, logger: logger}
}

// Run has the same contract as Pool.Run.
func (f *Fanout) Run(ctx context.Context, assets []*dataspace.Asset) (*Report, error) {
	b, batchCtx := newBatch(ctx, f.dl, f.opts.RunID, f.opts.Sink,
		newTracker(f.opts.Progress, true, assets), len(assets), f.logger)

	b.logger.Info("starting fan-out",
		slog.Int("assets", len(assets)),
		slog.Int("max_concurrent", f.opts.MaxConcurrent),
	)

	g, gctx := errgroup.WithContext(batchCtx)
	sem := semaphore.NewWeighted(int64(f.opts.MaxConcurrent))

	for _, a := range assets {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)
			return b.run(gctx, a)
		})
	}

	// The only error g can carry is the authentication failure, which
	// batch already holds.
	_ = g.Wait()

	return b.finish(ctx)
}
