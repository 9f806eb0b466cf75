package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/ingestbench/internal/event"
	"github.com/torosent/ingestbench/internal/httpclient"
	"github.com/torosent/ingestbench/internal/metrics"
	"github.com/torosent/ingestbench/internal/tracing"
)

// maxErrorBody caps how much of a non-200 response body ends up in the error message.
const maxErrorBody = 1024

// Sender delivers one event and reports its outcome. Implementations never fail;
// every error is folded into the returned Outcome.
type Sender interface {
	Dispatch(ctx context.Context, ev event.Event, tick int) metrics.Outcome
}

// Dispatcher POSTs events to the ingestion endpoint and records each outcome.
type Dispatcher struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	recorder  *metrics.Recorder
	tracer    trace.Tracer
	propagate bool
	logger    *zap.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTracer opens a client span per request and, when propagate is set,
// sends traceparent headers.
func WithTracer(tracer trace.Tracer, propagate bool) DispatcherOption {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
		d.propagate = propagate
	}
}

// WithDispatchLogger logs every outcome at debug level.
func WithDispatchLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher sharing client across all requests.
func NewDispatcher(client *http.Client, builder *httpclient.RequestBuilder, recorder *metrics.Recorder, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:   client,
		builder:  builder,
		recorder: recorder,
		tracer:   noop.NewTracerProvider().Tracer(""),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends ev and records the outcome before returning it. The request
// is detached from ctx cancellation; only the client timeout ends it early.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event, tick int) metrics.Outcome {
	ctx, span := tracing.StartDispatchSpan(context.WithoutCancel(ctx), d.tracer, d.builder.Target(), tick)

	outcome := metrics.Outcome{Tick: tick}
	status, err := d.send(ctx, ev, &outcome.Latency)
	if err != nil {
		outcome.Err = failureMessage(err)
	} else {
		outcome.Success = true
	}
	tracing.EndDispatchSpan(span, status, err)

	d.recorder.Record(outcome)
	if ce := d.logger.Check(zap.DebugLevel, "dispatch"); ce != nil {
		ce.Write(
			zap.Int("tick", tick),
			zap.Duration("latency", outcome.Latency),
			zap.Bool("success", outcome.Success),
			zap.String("error", outcome.Err),
		)
	}
	return outcome
}

// send performs the request and stores the latency from just before the
// request is written until the body is fully read or the request fails.
func (d *Dispatcher) send(ctx context.Context, ev event.Event, latency *time.Duration) (int, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	req, err := d.builder.Build(ctx, payload)
	if err != nil {
		return 0, err
	}
	if d.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	defer func() { *latency = time.Since(start) }()

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func failureMessage(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Error()
	}
	return "Exception: " + err.Error()
}
