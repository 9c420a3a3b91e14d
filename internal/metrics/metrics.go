// Package metrics exposes Prometheus counters for transfers. A nil *Metrics
// is valid and records nothing, so components never branch on whether
// metrics are enabled.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cdse_get"

// shutdownTimeout bounds the metrics server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Metrics holds the collectors. It satisfies dataspace.Recorder,
// auth.Recorder and transfer.Recorder.
type Metrics struct {
	requests     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	tokenRefresh *prometheus.CounterVec
	bytes        prometheus.Counter
	outcomes     *prometheus.CounterVec
	inFlight     prometheus.Gauge
	registerer   prometheus.Registerer
	gatherer     prometheus.Gatherer
}

// New creates and registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Logical HTTP requests by final outcome (success, failed, exhausted).",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried attempts by reason (HTTP status or network).",
		}, []string{"reason"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token endpoint exchanges by result.",
		}, []string{"result"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Bytes written to temporary transfer files.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Per-asset outcomes by status.",
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfers_in_flight",
			Help:      "Transfers with an open response body.",
		}),
		registerer: reg,
		gatherer:   reg,
	}

	for _, c := range []prometheus.Collector{m.requests, m.retries, m.tokenRefresh, m.bytes, m.outcomes, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: registering collector: %w", err)
		}
	}

	return m, nil
}

// ObserveRequest counts a finished logical request.
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts one retry.
func (m *Metrics) ObserveRetry(reason string) {
	if m == nil {
		return
	}

	m.retries.WithLabelValues(reason).Inc()
}

// ObserveTokenRefresh counts one token exchange.
func (m *Metrics) ObserveTokenRefresh(success bool) {
	if m == nil {
		return
	}

	result := "success"
	if !success {
		result = "failure"
	}

	m.tokenRefresh.WithLabelValues(result).Inc()
}

// ObserveBytes adds streamed bytes.
func (m *Metrics) ObserveBytes(n int) {
	if m == nil {
		return
	}

	m.bytes.Add(float64(n))
}

// ObserveOutcome counts a per-asset outcome.
func (m *Metrics) ObserveOutcome(status string) {
	if m == nil {
		return
	}

	m.outcomes.WithLabelValues(status).Inc()
}

// TransferStarted increments the in-flight gauge.
func (m *Metrics) TransferStarted() {
	if m == nil {
		return
	}

	m.inFlight.Inc()
}

// TransferFinished decrements the in-flight gauge.
func (m *Metrics) TransferFinished() {
	if m == nil {
		return
	}

	m.inFlight.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Registry: m.registerer})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("metrics server listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics: serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: shutting down: %w", err)
	}

	return nil
}
