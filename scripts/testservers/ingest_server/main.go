// Command ingest_server is a stand-in for the gateway's /event endpoint, used
// to exercise ingestbench locally with configurable latency and failures.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type serverConfig struct {
	Latency     time.Duration
	Jitter      time.Duration
	FailureRate float64
	FailStatus  int
}

type ingestHandler struct {
	cfg      serverConfig
	logger   *zap.Logger
	accepted atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

var requiredFields = []string{"appId", "anonymousId", "sessionId", "eventType", "timestamp"}

func main() {
	fs := pflag.NewFlagSet("ingest_server", pflag.ExitOnError)
	addr := fs.String("addr", ":8001", "Listen address")
	latency := fs.Duration("latency", 0, "Base response latency")
	jitter := fs.Duration("jitter", 0, "Random extra latency up to this value")
	failureRate := fs.Float64("failure-rate", 0, "Fraction of requests answered with --fail-status (0.0-1.0)")
	failStatus := fs.Int("fail-status", http.StatusServiceUnavailable, "Status code for injected failures")
	_ = fs.Parse(os.Args[1:])

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	h := &ingestHandler{
		cfg: serverConfig{
			Latency:     *latency,
			Jitter:      *jitter,
			FailureRate: *failureRate,
			FailStatus:  *failStatus,
		},
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/event", h)
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("ingest server listening", zap.String("addr", *addr), zap.Any("config", h.cfg))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
	logger.Info("ingest server stopped",
		zap.Int64("accepted", h.accepted.Load()),
		zap.Int64("rejected", h.rejected.Load()),
		zap.Int64("failed", h.failed.Load()),
	)
}

func (h *ingestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if msg := validateEvent(body); msg != "" {
		h.rejected.Add(1)
		h.logger.Debug("rejected event", zap.String("reason", msg))
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if d := h.delay(); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	if h.cfg.FailureRate > 0 && rand.Float64() < h.cfg.FailureRate {
		h.failed.Add(1)
		http.Error(w, "injected failure", h.cfg.FailStatus)
		return
	}
	h.accepted.Add(1)
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"accepted"}`)
}

func (h *ingestHandler) delay() time.Duration {
	d := h.cfg.Latency
	if h.cfg.Jitter > 0 {
		d += rand.N(h.cfg.Jitter)
	}
	return d
}

func validateEvent(body []byte) string {
	if !gjson.ValidBytes(body) {
		return "invalid JSON"
	}
	for _, field := range requiredFields {
		if v := gjson.GetBytes(body, field); !v.Exists() || v.String() == "" {
			return "missing " + field
		}
	}
	return ""
}
