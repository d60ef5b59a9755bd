// Package observability provides OpenTelemetry tracing and metrics for
// reservoir. It installs the trace and meter providers, wraps spans for the
// workload driver and exposes a pool.Recorder backed by otel instruments.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span wraps a trace span and batches its attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span with tracer. A nil tracer uses the global one.
func StartSpan(ctx context.Context, tracer trace.Tracer, operationName string) (context.Context, *Span) {
	if tracer == nil {
		tracer = Tracer()
	}
	ctx, span := tracer.Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint64:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks the span as failed. A nil error marks it ok.
func (s *Span) RecordError(err error) {
	if err == nil {
		s.span.SetStatus(codes.Ok, "")
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// Elapsed returns the time since the span started.
func (s *Span) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// End flushes the batched attributes and ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.SetAttributes(attribute.Int64("duration_ns", s.Elapsed().Nanoseconds()))
	s.span.End()
}

// PoolTracer names spans after the pool they trace.
type PoolTracer struct {
	pool   string
	tracer trace.Tracer
}

// NewPoolTracer creates a tracer for the named pool. A nil tracer uses the
// global one.
func NewPoolTracer(pool string, tracer trace.Tracer) *PoolTracer {
	if tracer == nil {
		tracer = Tracer()
	}
	return &PoolTracer{pool: pool, tracer: tracer}
}

// StartSpan starts a span named pool.<name>.<operation>.
func (pt *PoolTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, pt.tracer, fmt.Sprintf("pool.%s.%s", pt.pool, operation))
	span.SetAttribute("pool.name", pt.pool)
	span.SetAttribute("pool.operation", operation)
	return ctx, span
}

// Trace runs fn inside a span and records its error.
func (pt *PoolTracer) Trace(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := pt.StartSpan(ctx, operation)
	defer span.End()

	err := fn(ctx)
	span.RecordError(err)
	return err
}

// TracingMiddleware provides HTTP middleware for tracing
func TracingMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Extract trace context from headers
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

			operationName := fmt.Sprintf("%s %s", r.Method, r.URL.Path)
			ctx, span := Tracer().Start(ctx, operationName)
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.String()),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.String("service.name", serviceName),
			)

			// Inject trace context into response headers
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
