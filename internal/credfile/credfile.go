// Package credfile stores the client credential saved by 'cdse-get login'.
// The file is JSON, owner-only, and replaced atomically.
package credfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tonimelisma/cdse-get/internal/auth"
)

// FilePerms restricts credential files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the data directory.
const DirPerms = 0o700

// File is the on-disk format.
type File struct {
	Credential auth.Credential `json:"credential"`
	SavedAt    time.Time       `json:"saved_at"`
}

// Load reads a saved credential. Returns (zero, false, nil) if the file does
// not exist.
func Load(path string) (auth.Credential, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return auth.Credential{}, false, nil
	}

	if err != nil {
		return auth.Credential{}, false, fmt.Errorf("credfile: reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return auth.Credential{}, false, fmt.Errorf("credfile: decoding %s: %w", path, err)
	}

	if f.Credential.ClientID == "" {
		return auth.Credential{}, false, fmt.Errorf("credfile: %s missing client_id (run 'cdse-get login' again)", path)
	}

	return f.Credential, true, nil
}

// Save writes the credential atomically (write-to-temp + rename) with 0600
// permissions.
func Save(path string, cred auth.Credential) error {
	data, err := json.MarshalIndent(File{Credential: cred, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("credfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("credfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("credfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the credential file. A missing file is not an error; the
// return reports whether a file was removed.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("credfile: removing %s: %w", path, err)
	}

	return true, nil
}
