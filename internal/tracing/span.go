package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartDispatchSpan starts a client span for one event POST. tick is the pacer
// tick the request belongs to, or negative outside rate-limited mode.
func StartDispatchSpan(ctx context.Context, tracer trace.Tracer, target string, tick int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "POST /event",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", http.MethodPost),
		attribute.String("url.full", target),
	)
	if tick >= 0 {
		span.SetAttributes(attribute.Int("ingestbench.tick", tick))
	}
	return ctx, span
}

// EndDispatchSpan finishes a dispatch span. status is the HTTP status code, or
// 0 when no response was received.
func EndDispatchSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders writes W3C trace context into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
