package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tonimelisma/cdse-get/internal/dataspace"
)

// Verify status constants (used in VerifyResult.Status).
const (
	VerifyOK           = "ok"
	VerifyMissing      = "missing"
	VerifyHashMismatch = "hash_mismatch"
	VerifySizeMismatch = "size_mismatch"
)

// VerifyResult is the verification outcome of one asset's file.
type VerifyResult struct {
	AssetID  string `json:"asset_id"`
	Path     string `json:"path"`
	Status   string `json:"status"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// VerifyReport summarizes VerifyAssets. Only failures are listed.
type VerifyReport struct {
	Verified   int            `json:"verified"`
	Mismatches []VerifyResult `json:"mismatches"`
}

// VerifyAssets re-checks previously downloaded files against the sizes and
// checksums their assets declare. Read-only: nothing is fetched or removed.
// A nil newHasher selects NewHasher.
func VerifyAssets(
	ctx context.Context, outputDir string, assets []*dataspace.Asset, newHasher HasherFunc, logger *slog.Logger,
) (*VerifyReport, error) {
	if newHasher == nil {
		newHasher = NewHasher
	}

	report := &VerifyReport{Mismatches: []VerifyResult{}}

	for _, a := range assets {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transfer: verify canceled: %w", ctx.Err())
		}

		target, err := ResolveTarget(outputDir, a)
		if err != nil {
			return nil, err
		}

		result := verifyFile(target.Path(), a, newHasher, logger)
		result.AssetID = a.ID

		if result.Status == VerifyOK {
			report.Verified++
		} else {
			report.Mismatches = append(report.Mismatches, result)
		}
	}

	return report, nil
}

func verifyFile(path string, a *dataspace.Asset, newHasher HasherFunc, logger *slog.Logger) VerifyResult {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		result := VerifyResult{Path: path, Status: VerifyMissing}
		if err != nil && !os.IsNotExist(err) {
			result.Actual = err.Error()
		}

		return result
	}

	// Size first; it costs no read.
	if a.Size > 0 && info.Size() != a.Size {
		return VerifyResult{
			Path:     path,
			Status:   VerifySizeMismatch,
			Expected: strconv.FormatInt(a.Size, 10),
			Actual:   strconv.FormatInt(info.Size(), 10),
		}
	}

	if a.Checksum.IsZero() {
		return VerifyResult{Path: path, Status: VerifyOK}
	}

	h, err := newHasher(a.Checksum.Algorithm)
	if err != nil {
		logger.Warn("verify: checksum not checked", slog.String("asset_id", a.ID), slog.String("error", err.Error()))
		return VerifyResult{Path: path, Status: VerifyOK}
	}

	digest, err := hashFile(path, h)
	if err != nil {
		logger.Warn("verify: hash failed", slog.String("path", path), slog.String("error", err.Error()))

		return VerifyResult{Path: path, Status: VerifyHashMismatch, Expected: a.Checksum.String(), Actual: err.Error()}
	}

	if !strings.EqualFold(digest, a.Checksum.Value) {
		return VerifyResult{
			Path:     path,
			Status:   VerifyHashMismatch,
			Expected: a.Checksum.String(),
			Actual:   a.Checksum.Algorithm + ":" + digest,
		}
	}

	return VerifyResult{Path: path, Status: VerifyOK}
}

func hashFile(path string, h Hasher) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return h.Digest(), nil
}
