package transfer

import (
	"crypto/md5"  //nolint:gosec // CDSE publishes MD5 checksums; integrity only
	"crypto/sha1" //nolint:gosec // integrity only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"lukechampine.com/blake3"
)

// Hasher is the hashing capability the downloader depends on: bytes are
// written in as they stream to disk and the digest is read once at the end.
type Hasher interface {
	io.Writer
	// Digest returns the lowercase hex digest of everything written.
	Digest() string
}

// HasherFunc constructs a Hasher for a checksum algorithm name.
type HasherFunc func(algorithm string) (Hasher, error)

// ErrUnsupportedAlgorithm is returned by NewHasher for unknown algorithms.
var ErrUnsupportedAlgorithm = errors.New("transfer: unsupported checksum algorithm")

// blake3Size is the BLAKE3 digest length published by the catalog.
const blake3Size = 32

type stdHasher struct {
	hash.Hash
}

func (h stdHasher) Digest() string {
	return hex.EncodeToString(h.Sum(nil))
}

// NewHasher returns a Hasher for MD5, SHA1, SHA256, SHA512 or BLAKE3
// (case-insensitive, dashes ignored).
func NewHasher(algorithm string) (Hasher, error) {
	switch strings.ReplaceAll(strings.ToUpper(algorithm), "-", "") {
	case "MD5":
		return stdHasher{md5.New()}, nil //nolint:gosec // integrity only
	case "SHA1":
		return stdHasher{sha1.New()}, nil //nolint:gosec // integrity only
	case "SHA256":
		return stdHasher{sha256.New()}, nil
	case "SHA512":
		return stdHasher{sha512.New()}, nil
	case "BLAKE3":
		return stdHasher{blake3.New(blake3Size, nil)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}
