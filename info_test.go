package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/cdse-get/internal/auth"
)

func TestInfo_Table(t *testing.T) {
	testEnv(t)
	t.Setenv(auth.EnvClientID, testClientID)
	t.Setenv(auth.EnvClientSecret, testClientSecret)

	srv := newFakeDataspace(t)
	srv.addProduct("S2A_ONE", "loc-1", 42)

	out, err := execute(t, "", "--config", writeConfig(t, srv, ""), "info", "loc-1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, "header plus three scalar fields")
	assert.Contains(t, lines[0], "FIELD")
	assert.Contains(t, lines[1], "ContentLength")
	assert.Contains(t, lines[1], "42")
	assert.Contains(t, lines[2], "loc-1")
	assert.NotContains(t, out, "Footprint")
}

func TestInfo_JSONKeepsNestedFields(t *testing.T) {
	testEnv(t)
	t.Setenv(auth.EnvClientID, testClientID)
	t.Setenv(auth.EnvClientSecret, testClientSecret)

	srv := newFakeDataspace(t)
	srv.addProduct("S2A_ONE", "loc-1", 42)

	out, err := execute(t, "", "--config", writeConfig(t, srv, ""), "--json", "info", "loc-1")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "loc-1", info["Id"])
	assert.Contains(t, info, "Footprint")
}

func TestInfo_UnknownLocator(t *testing.T) {
	testEnv(t)
	t.Setenv(auth.EnvClientID, testClientID)
	t.Setenv(auth.EnvClientSecret, testClientSecret)

	srv := newFakeDataspace(t)

	_, err := execute(t, "", "--config", writeConfig(t, srv, ""), "info", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestPrintInfoTable_SkipsNestedValues(t *testing.T) {
	var buf strings.Builder

	printInfoTable(&buf, map[string]any{
		"Name":       "S2A",
		"Online":     true,
		"Attributes": []any{1, 2},
		"Footprint":  map[string]any{},
	})

	assert.Equal(t, "FIELD   VALUE\nName    S2A\nOnline  true\n", buf.String())
}
