package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()

	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	return m
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_Counters(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveRequest("success")
	m.ObserveRequest("success")
	m.ObserveRequest("exhausted")
	m.ObserveRetry("503")
	m.ObserveRetry("network")
	m.ObserveRetry("503")
	m.ObserveTokenRefresh(true)
	m.ObserveTokenRefresh(false)
	m.ObserveBytes(1024)
	m.ObserveBytes(512)
	m.ObserveOutcome("success")
	m.ObserveOutcome("failed")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("success")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("exhausted")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.retries.WithLabelValues("503")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("network")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.tokenRefresh.WithLabelValues("failure")), 0)
	assert.InDelta(t, 1536.0, testutil.ToFloat64(m.bytes), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("failed")), 0)
}

func TestMetrics_InFlightGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.TransferStarted()
	m.TransferStarted()
	m.TransferFinished()

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.inFlight), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("success")
		m.ObserveRetry("429")
		m.ObserveTokenRefresh(true)
		m.ObserveBytes(1)
		m.ObserveOutcome("skipped")
		m.TransferStarted()
		m.TransferFinished()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveOutcome("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cdse_get_outcomes_total{status="success"} 1`)
}
