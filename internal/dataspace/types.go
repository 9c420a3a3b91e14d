package dataspace

import (
	"fmt"
	"strings"
	gosync "sync"
)

// Checksum is an algorithm-tagged content digest, e.g. {"MD5", "9e10..."}.
// The zero value means "no checksum declared".
type Checksum struct {
	Algorithm string
	Value     string
}

// IsZero reports whether no checksum was declared.
func (c Checksum) IsZero() bool {
	return c.Value == ""
}

func (c Checksum) String() string {
	if c.IsZero() {
		return ""
	}

	return c.Algorithm + ":" + c.Value
}

// ParseChecksum parses the "ALGO:hexdigest" form used in manifests.
// An empty string yields the zero Checksum.
func ParseChecksum(s string) (Checksum, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Checksum{}, nil
	}

	algo, value, ok := strings.Cut(s, ":")
	if !ok || algo == "" || value == "" {
		return Checksum{}, fmt.Errorf("dataspace: checksum %q: want ALGORITHM:DIGEST", s)
	}

	return Checksum{Algorithm: strings.ToUpper(algo), Value: strings.ToLower(value)}, nil
}

// Asset describes one downloadable product as handed over by the catalog
// layer. Its exported fields are read-only once the asset is shared with a
// downloader; the backend locator is the single field the transfer layer
// writes, exactly once, through CacheLocator.
//
// Assets must be passed by pointer (they carry a mutex).
type Asset struct {
	ID          string   // catalog identifier
	Name        string   // product name, e.g. S2A_MSIL2A_20240115T...
	Size        int64    // declared size in bytes; <= 0 means unknown
	Checksum    Checksum // declared checksum; zero means none
	DownloadURL string   // direct transfer URL from catalog assets, if any
	FileName    string   // overrides the derived file name when set

	mu      gosync.Mutex
	locator string
}

// Locator returns the cached backend locator, or "" if unresolved.
func (a *Asset) Locator() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.locator
}

// CacheLocator stores the resolved backend locator. Only the first call
// with a non-empty value takes effect; it reports whether it did.
func (a *Asset) CacheLocator(locator string) bool {
	if locator == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.locator != "" {
		return false
	}

	a.locator = locator

	return true
}

// DisplayName returns the product name, falling back to the catalog ID.
func (a *Asset) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}

	return a.ID
}
