package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/cdse-get/internal/ledger"
	"github.com/tonimelisma/cdse-get/internal/transfer"
)

func TestHistory_EmptyLedger(t *testing.T) {
	testEnv(t)

	srv := newFakeDataspace(t)

	out, err := execute(t, "", "--config", writeConfig(t, srv, ""), "--json", "history")
	require.NoError(t, err)

	var entries []historyJSON
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Empty(t, entries)
}

func TestHistory_DisabledLedger(t *testing.T) {
	testEnv(t)

	srv := newFakeDataspace(t)

	_, err := execute(t, "", "--config", writeConfig(t, srv, "enabled = false\n"), "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestPrintHistoryTable(t *testing.T) {
	var buf strings.Builder

	printHistoryTable(&buf, []ledger.Entry{
		{
			RunID:       "0123456789abcdef",
			Name:        "S2B",
			Status:      transfer.StatusFailed,
			FailureKind: transfer.KindIntegrity,
			Error:       "checksum mismatch",
			RecordedAt:  time.Now(),
		},
		{
			RunID:      "short",
			Name:       "S2A",
			Status:     transfer.StatusSuccess,
			Path:       "/out/S2A.zip",
			Bytes:      1536,
			RecordedAt: time.Now(),
		},
	})

	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "integrity: checksum mismatch")
	assert.Contains(t, out, "1.5 KB")
	assert.Contains(t, out, "/out/S2A.zip")
}
