// Package exporter publishes live run metrics in the Prometheus text format.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/torosent/ingestbench/internal/metrics"
)

const namespace = "ingestbench"

// Exporter implements metrics.Observer and runner.TickListener.
type Exporter struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   prometheus.Histogram
	targetRPS prometheus.Gauge
	logger    *zap.Logger
}

// New creates an exporter with its own registry.
func New(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of dispatched events by result.",
		}, []string{"result"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Number of failed events by error kind.",
		}, []string{"kind"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of dispatched events.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		targetRPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_rps",
			Help:      "Requests scheduled for the current tick in rate-limited mode.",
		}),
		logger: logger,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) ObserveOutcome(o metrics.Outcome) {
	e.latency.Observe(o.Latency.Seconds())
	if o.Success {
		e.requests.WithLabelValues("success").Inc()
		return
	}
	e.requests.WithLabelValues("failure").Inc()
	e.errors.WithLabelValues(metrics.ErrorKind(o.Err)).Inc()
}

func (e *Exporter) TickStarted(_, scheduled int) {
	e.targetRPS.Set(float64(scheduled))
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr until ctx is cancelled. The returned address is the
// bound listener address, which differs from addr when a port of 0 is given.
func (e *Exporter) Serve(ctx context.Context, addr string) (string, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	e.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), errCh, nil
}
