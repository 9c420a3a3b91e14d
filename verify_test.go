package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/cdse-get/internal/auth"
	"github.com/tonimelisma/cdse-get/internal/transfer"
)

func TestVerify_AfterDownload(t *testing.T) {
	testEnv(t)
	t.Setenv(auth.EnvClientID, testClientID)
	t.Setenv(auth.EnvClientSecret, testClientSecret)

	srv := newFakeDataspace(t)
	sum := srv.addProduct("S2A_ONE", "loc-1", 300)
	srv.addProduct("S2B_TWO", "loc-2", 200)

	cfgPath := writeConfig(t, srv, "")
	outDir := t.TempDir()
	manifest := writeManifest(t, []manifestEntry{
		{ID: "one", Name: "S2A_ONE", Size: 300, Checksum: "MD5:" + sum},
		{ID: "two", Name: "S2B_TWO", Size: 200},
	})

	_, err := execute(t, "", "--config", cfgPath, "download", manifest, "--output-dir", outDir)
	require.NoError(t, err)

	out, err := execute(t, "", "--config", cfgPath, "verify", manifest, "--output-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Verified: 2 files")
	assert.Contains(t, out, "All files verified successfully.")

	require.NoError(t, os.Remove(filepath.Join(outDir, "S2B_TWO.zip")))

	out, err = execute(t, "", "--config", cfgPath, "--json", "verify", manifest, "--output-dir", outDir)
	require.ErrorIs(t, err, errVerifyMismatch)

	var report transfer.VerifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Verified)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "two", report.Mismatches[0].AssetID)
	assert.Equal(t, transfer.VerifyMissing, report.Mismatches[0].Status)
}

func TestVerify_NeedsNoCredentials(t *testing.T) {
	testEnv(t)

	out, err := execute(t, `[{"name":"S2A_ONE"}]`, "verify", "-", "--output-dir", t.TempDir())
	require.ErrorIs(t, err, errVerifyMismatch)
	assert.Contains(t, out, "missing")
}
