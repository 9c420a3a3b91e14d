// Package transfer streams assets to disk and fans downloads out over either
// a fixed worker pool or a semaphore-bounded goroutine fan-out. Both
// orchestrators call the same Downloader, so skip, verification and cleanup
// decisions are made in exactly one place.
package transfer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/cdse-get/internal/dataspace"
)

// defaultExtension is appended to product names that carry none; the
// transfer endpoint serves zipped product bundles.
const defaultExtension = ".zip"

// maxFileNameBytes keeps derived names under common filesystem limits.
const maxFileNameBytes = 255

var errNoFileName = errors.New("transfer: asset has no name, id, or file name")

// Target is where an asset's bytes end up: an output directory and a file
// name derived deterministically from the asset.
type Target struct {
	Dir      string
	FileName string
}

// Path returns the final file path.
func (t Target) Path() string {
	return filepath.Join(t.Dir, t.FileName)
}

// ResolveTarget derives the target for an asset. The same asset always maps
// to the same path: the explicit FileName if set, otherwise the product name
// (or id) with ".zip" appended unless it already has that extension. Names
// are NFC-normalized and stripped of path separators and control characters.
func ResolveTarget(outputDir string, a *dataspace.Asset) (Target, error) {
	name := a.FileName
	if name == "" {
		name = a.DisplayName()
		if name != "" && !strings.EqualFold(filepath.Ext(name), defaultExtension) {
			name += defaultExtension
		}
	}

	name = sanitizeFileName(name)
	if name == "" || name == "." || name == ".." {
		return Target{}, fmt.Errorf("%w (id %q)", errNoFileName, a.ID)
	}

	if outputDir == "" {
		outputDir = "."
	}

	return Target{Dir: filepath.Clean(outputDir), FileName: name}, nil
}

// sanitizeFileName maps a product name to a single safe path component.
func sanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))

	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, name)

	for len(name) > maxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}

	return name
}
