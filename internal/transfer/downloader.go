package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tonimelisma/cdse-get/internal/auth"
	"github.com/tonimelisma/cdse-get/internal/dataspace"
)

// DefaultChunkSize is the streaming read size. The payload is never
// held in memory beyond one chunk.
const DefaultChunkSize = 128 * 1024

// Output permissions.
const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// partialSuffix marks temporary transfer files. Files with this suffix are
// never valid final output.
const partialSuffix = ".partial"

// Fetcher opens the binary transfer for an asset, resolving its backend
// locator if needed. *dataspace.Client satisfies it.
type Fetcher interface {
	OpenDownload(ctx context.Context, a *dataspace.Asset) (*http.Response, error)
}

// Recorder observes transfer activity. *metrics.Metrics satisfies it.
type Recorder interface {
	TransferStarted()
	TransferFinished()
	ObserveBytes(n int)
	ObserveOutcome(status string)
}

// ChunkFunc receives per-asset progress after each chunk. total is -1 when
// the size is unknown.
type ChunkFunc func(bytesSoFar, total int64)

// Options configures a Downloader.
type Options struct {
	OutputDir      string
	SkipExisting   bool
	VerifyChecksum bool
	ChunkSize      int               // 0 means DefaultChunkSize
	Limiter        *BandwidthLimiter // nil means unlimited
	NewHasher      HasherFunc        // nil means NewHasher
	Recorder       Recorder
}

// Downloader transfers one asset at a time to disk. It holds no per-call
// state and is shared by all workers of a batch.
type Downloader struct {
	fetcher   Fetcher
	outputDir string
	skip      bool
	verify    bool
	chunkSize int
	limiter   *BandwidthLimiter
	newHasher HasherFunc
	recorder  Recorder
	logger    *slog.Logger
}

// NewDownloader creates a Downloader.
func NewDownloader(fetcher Fetcher, opts Options, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	if opts.NewHasher == nil {
		opts.NewHasher = NewHasher
	}

	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	return &Downloader{
		fetcher:   fetcher,
		outputDir: opts.OutputDir,
		skip:      opts.SkipExisting,
		verify:    opts.VerifyChecksum,
		chunkSize: opts.ChunkSize,
		limiter:   opts.Limiter,
		newHasher: opts.NewHasher,
		recorder:  opts.Recorder,
		logger:    logger,
	}
}

// Download resolves the target, checks for an existing file, then opens,
// streams and verifies one asset. Per-asset failures are reported in the Outcome with a
// nil error. A non-nil error means the batch must stop: an authentication
// failure, or ctx was canceled, in which case the Outcome is meaningless and
// no temporary file remains. A file already at the target survives a failed
// re-download untouched; bytes that fail verification never replace it.
func (d *Downloader) Download(ctx context.Context, a *dataspace.Asset, progress ChunkFunc) (Outcome, error) {
	start := time.Now()
	out := Outcome{AssetID: a.ID, Name: a.DisplayName()}

	finish := func(o Outcome) (Outcome, error) {
		o.Duration = time.Since(start)
		return o, nil
	}

	target, err := ResolveTarget(d.outputDir, a)
	if err != nil {
		return finish(failed(out, err))
	}

	out.Path = target.Path()

	if d.skip && alreadyPresent(out.Path, a.Size) {
		d.logger.Info("skipping existing file",
			slog.String("asset_id", a.ID),
			slog.String("path", out.Path),
		)

		out.Status = StatusSkipped

		return finish(out)
	}

	if err := os.MkdirAll(target.Dir, dirPerms); err != nil {
		return finish(failed(out, &LocalIOError{Op: "creating directory", Path: target.Dir, Err: err}))
	}

	if d.recorder != nil {
		d.recorder.TransferStarted()
		defer d.recorder.TransferFinished()
	}

	resp, err := d.fetcher.OpenDownload(ctx, a)
	if err != nil {
		if fatal := batchFatal(ctx, err); fatal != nil {
			return out, fatal
		}

		return finish(failed(out, err))
	}
	defer resp.Body.Close()

	total := a.Size
	if total <= 0 {
		total = resp.ContentLength
	}

	if total <= 0 {
		total = -1
	}

	written, err := d.streamToFile(ctx, a, target, resp.Body, total, progress)
	if err != nil {
		if fatal := batchFatal(ctx, err); fatal != nil {
			return out, fatal
		}

		return finish(failed(out, err))
	}

	out.Status = StatusSuccess
	out.BytesWritten = written

	d.logger.Info("download complete",
		slog.String("asset_id", a.ID),
		slog.String("path", out.Path),
		slog.Int64("bytes", written),
		slog.Duration("elapsed", time.Since(start)),
	)

	return finish(out)
}

// streamToFile writes body to a temporary file next to the target, verifies
// it, and renames it into place. The temporary file is removed on every
// failure path.
func (d *Downloader) streamToFile(
	ctx context.Context, a *dataspace.Asset, target Target, body io.Reader, total int64, progress ChunkFunc,
) (int64, error) {
	tmp, err := os.CreateTemp(target.Dir, "."+target.FileName+".*"+partialSuffix)
	if err != nil {
		return 0, &LocalIOError{Op: "creating temp file in", Path: target.Dir, Err: err}
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()

			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				d.logger.Warn("failed to remove temp file",
					slog.String("path", tmpPath),
					slog.String("error", rmErr.Error()),
				)
			}
		}
	}()

	hasher := d.hasherFor(a)

	var sink io.Writer = tmp
	if hasher != nil {
		sink = io.MultiWriter(tmp, hasher)
	}

	written, err := d.copyChunks(ctx, sink, d.limiter.WrapReader(ctx, body), total, progress, tmpPath)
	if err != nil {
		return written, err
	}

	if err := tmp.Sync(); err != nil {
		return written, &LocalIOError{Op: "syncing", Path: tmpPath, Err: err}
	}

	if err := tmp.Close(); err != nil {
		return written, &LocalIOError{Op: "closing", Path: tmpPath, Err: err}
	}

	if d.verify {
		if err := verify(a, target.Path(), written, hasher); err != nil {
			d.logger.Warn("integrity check failed",
				slog.String("asset_id", a.ID),
				slog.String("error", err.Error()),
			)

			return written, err
		}
	}

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		return written, &LocalIOError{Op: "setting permissions on", Path: tmpPath, Err: err}
	}

	if err := os.Rename(tmpPath, target.Path()); err != nil {
		return written, &LocalIOError{Op: "renaming into", Path: target.Path(), Err: err}
	}

	success = true

	return written, nil
}

// copyChunks moves body to w in chunkSize pieces, in response order,
// reporting progress after each chunk.
func (d *Downloader) copyChunks(
	ctx context.Context, w io.Writer, body io.Reader, total int64, progress ChunkFunc, tmpPath string,
) (int64, error) {
	buf := make([]byte, d.chunkSize)

	var written int64

	for {
		n, readErr := readChunk(body, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, &LocalIOError{Op: "writing", Path: tmpPath, Err: err}
			}

			written += int64(n)

			if d.recorder != nil {
				d.recorder.ObserveBytes(n)
			}

			if progress != nil {
				progress(written, total)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, ctxErr
			}

			return written, fmt.Errorf("transfer: reading response after %d bytes: %w", written, readErr)
		}
	}
}

// readChunk fills buf unless the reader ends or fails first. Unlike
// io.ReadFull it passes the reader's own error through unchanged, so a
// truncated body is not mistaken for a clean end of stream.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n := 0

	for n < len(buf) {
		nn, err := r.Read(buf[n:])
		n += nn

		if err != nil {
			return n, err
		}
	}

	return n, nil
}

// hasherFor returns a hasher when the asset declares a checksum and
// verification is on. Unknown algorithms disable checksum verification for
// that asset with a warning.
func (d *Downloader) hasherFor(a *dataspace.Asset) Hasher {
	if !d.verify || a.Checksum.IsZero() {
		return nil
	}

	h, err := d.newHasher(a.Checksum.Algorithm)
	if err != nil {
		d.logger.Warn("checksum not verified",
			slog.String("asset_id", a.ID),
			slog.String("error", err.Error()),
		)

		return nil
	}

	return h
}

// verify compares the declared size and checksum against what was written.
func verify(a *dataspace.Asset, path string, written int64, hasher Hasher) error {
	if a.Size > 0 && written != a.Size {
		return &IntegrityError{Path: path, ExpectedSize: a.Size, ActualSize: written}
	}

	if hasher == nil {
		return nil
	}

	actual := hasher.Digest()
	if !strings.EqualFold(actual, a.Checksum.Value) {
		return &IntegrityError{
			Path:      path,
			Algorithm: a.Checksum.Algorithm,
			Expected:  a.Checksum.Value,
			Actual:    actual,
		}
	}

	return nil
}

// alreadyPresent reports whether the skip check passes: a regular file of the declared size,
// or of non-zero size when the size is unknown.
func alreadyPresent(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	if size > 0 {
		return info.Size() == size
	}

	return info.Size() > 0
}

// batchFatal returns the error that must stop the whole batch, or nil if
// err only concerns this asset.
func batchFatal(ctx context.Context, err error) error {
	if auth.IsAuthenticationError(err) {
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("transfer: canceled: %w", ctxErr)
	}

	return nil
}

func failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Kind = kindOf(err)
	out.Err = err

	return out
}
