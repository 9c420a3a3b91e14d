package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_InSection(t *testing.T) {
	path := writeTestConfig(t, "[transfers]\nmax_worker = 4\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), `"max_workers"`)
}

func TestLoad_UnknownSection_Suggestion(t *testing.T) {
	path := writeTestConfig(t, "[netwrk]\ntimeout = \"10s\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[network]")
}

func TestLoad_KeyOutsideSection(t *testing.T) {
	path := writeTestConfig(t, "mode = \"blocking\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keys belong in a section")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
[ledger]
completely_unrelated_key = true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_SecretKeyTypo(t *testing.T) {
	path := writeTestConfig(t, "[auth]\nclient_secert = \"x\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"client_secret"`)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"max_worker", "max_workers", 1},
		{"client_secert", "client_secret", 2},
		{"completely_different", "xyz", 19},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch_Found(t *testing.T) {
	known := []string{"max_workers", "max_concurrent", "mode"}
	assert.Equal(t, "max_workers", closestMatch("max_worker", known))
	assert.Equal(t, "mode", closestMatch("mod", known))
}

func TestClosestMatch_NotFound(t *testing.T) {
	known := []string{"max_workers", "mode"}
	assert.Equal(t, "", closestMatch("completely_unrelated", known))
}
