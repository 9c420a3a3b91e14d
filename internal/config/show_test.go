package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective_AllSections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderEffective(DefaultConfig(), "/etc/cdse-get/config.toml", &buf))

	output := buf.String()
	assert.Contains(t, output, "/etc/cdse-get/config.toml")

	for _, section := range []string{"[auth]", "[network]", "[transfers]", "[ledger]", "[logging]"} {
		assert.Contains(t, output, section)
	}

	assert.Contains(t, output, `mode            = "blocking"`)
	assert.Contains(t, output, "max_retries        = 3")
}

func TestRenderEffective_HidesSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.ClientID = "sh-client"
	cfg.Auth.ClientSecret = "super-secret-value"

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(cfg, "config.toml", &buf))

	assert.Contains(t, buf.String(), "sh-client")
	assert.NotContains(t, buf.String(), "super-secret-value")
	assert.Contains(t, buf.String(), redacted)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRenderEffective_WriteError(t *testing.T) {
	err := RenderEffective(DefaultConfig(), "config.toml", failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
