package transfer

import (
	"sync"

	"github.com/tonimelisma/cdse-get/internal/dataspace"
)

// ProgressEvent reports one chunk (or the completion) of one asset.
type ProgressEvent struct {
	AssetID string
	Name    string
	Bytes   int64
	Total   int64 // -1 when unknown
	Done    bool
	// Overall is populated by the Fanout orchestrator only.
	Overall Overall
}

// Overall aggregates progress across a whole batch.
type Overall struct {
	Bytes     int64
	Total     int64 // sum of declared sizes, -1 if any is unknown
	Completed int
	Assets    int
}

// ProgressFunc receives progress events. Calls are serialized, so the
// function need not be safe for concurrent use, but it must not block.
type ProgressFunc func(ProgressEvent)

// tracker fans per-chunk callbacks from concurrent downloads into one
// serialized ProgressFunc, maintaining the batch aggregate.
type tracker struct {
	mu          sync.Mutex
	fn          ProgressFunc
	withOverall bool
	perAsset    map[*dataspace.Asset]int64
	overall     Overall
}

func newTracker(fn ProgressFunc, withOverall bool, assets []*dataspace.Asset) *tracker {
	t := &tracker{
		fn:          fn,
		withOverall: withOverall,
		perAsset:    make(map[*dataspace.Asset]int64, len(assets)),
		overall:     Overall{Assets: len(assets)},
	}

	for _, a := range assets {
		if a.Size <= 0 {
			t.overall.Total = -1
			break
		}

		t.overall.Total += a.Size
	}

	return t
}

// chunkFunc returns the per-asset callback handed to Downloader.Download.
func (t *tracker) chunkFunc(a *dataspace.Asset) ChunkFunc {
	if t == nil || t.fn == nil {
		return nil
	}

	return func(bytesSoFar, total int64) {
		t.mu.Lock()
		defer t.mu.Unlock()

		t.overall.Bytes += bytesSoFar - t.perAsset[a]
		t.perAsset[a] = bytesSoFar

		t.emit(ProgressEvent{AssetID: a.ID, Name: a.DisplayName(), Bytes: bytesSoFar, Total: total})
	}
}

// done records a terminal outcome. Skipped assets count as fully
// transferred so the aggregate can reach its total.
func (t *tracker) done(a *dataspace.Asset, out Outcome) {
	if t == nil || t.fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if out.Status == StatusSkipped && a.Size > 0 {
		t.overall.Bytes += a.Size - t.perAsset[a]
		t.perAsset[a] = a.Size
	}

	t.overall.Completed++

	t.emit(ProgressEvent{
		AssetID: a.ID,
		Name:    a.DisplayName(),
		Bytes:   t.perAsset[a],
		Total:   max(a.Size, -1),
		Done:    true,
	})
}

// emit calls fn with the aggregate attached. Caller holds t.mu.
func (t *tracker) emit(ev ProgressEvent) {
	if ev.Total == 0 {
		ev.Total = -1
	}

	if t.withOverall {
		ev.Overall = t.overall
	}

	t.fn(ev)
}
