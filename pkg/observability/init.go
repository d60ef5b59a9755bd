package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/ajitpratap0/reservoir/pkg/config"
)

// instrumentationName identifies reservoir's tracer and meter.
const instrumentationName = "github.com/ajitpratap0/reservoir"

var (
	// Provider installed by Initialize
	current *Provider
	mu      sync.Mutex
)

// Config contains tracing configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	Pretty         bool
	// Writer receives exported spans, os.Stdout when nil
	Writer         io.Writer
	BatchTimeout   time.Duration
}

// FromConfig converts the tracing section of the file configuration.
func FromConfig(c config.TracingConfig, version string) Config {
	return Config{
		Enabled:        c.Enabled,
		ServiceName:    c.ServiceName,
		ServiceVersion: version,
		Environment:    getEnv("ENVIRONMENT", "development"),
		SamplingRate:   c.SampleRate,
		Pretty:         c.Pretty,
		BatchTimeout:   5 * time.Second,
	}
}

// Option customizes a Provider.
type Option func(*providerOptions)

type providerOptions struct {
	processors []sdktrace.SpanProcessor
	readers    []sdkmetric.Reader
}

// WithSpanProcessor registers an additional span processor, e.g. a
// tracetest.SpanRecorder in tests.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *providerOptions) { o.processors = append(o.processors, p) }
}

// WithMetricReader registers a metric reader. Without one, measurements
// taken through the provider's meter are dropped.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *providerOptions) { o.readers = append(o.readers, r) }
}

// Provider owns the trace and meter providers of one process.
type Provider struct {
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	tracer trace.Tracer
	meter  metric.Meter
}

// NewProvider builds trace and meter providers. When tracing is enabled,
// spans are exported through the stdout exporter.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
	}
	if cfg.Enabled {
		exporter, err := newExporter(cfg)
		if err != nil {
			return nil, err
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout)))
	}
	for _, p := range o.processors {
		traceOpts = append(traceOpts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range o.readers {
		metricOpts = append(metricOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(metricOpts...)

	return &Provider{
		tp:     tp,
		mp:     mp,
		tracer: tp.Tracer(instrumentationName),
		meter:  mp.Meter(instrumentationName),
	}, nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.Pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	return exporter, nil
}

// sampler maps a rate to a sampler; rates outside (0, 1) pick the extremes.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the provider's meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	return multierr.Combine(
		p.tp.Shutdown(ctx),
		p.mp.Shutdown(ctx),
	)
}

// Initialize builds a Provider and installs it as the global OpenTelemetry
// tracer and meter provider. A previously installed Provider is shut down.
func Initialize(cfg Config, opts ...Option) (*Provider, error) {
	p, err := NewProvider(cfg, opts...)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	prev := current
	current = p
	mu.Unlock()
	if prev != nil {
		_ = prev.Shutdown(context.Background())
	}

	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// Tracer returns reservoir's tracer from the global provider. It is a no-op
// tracer until Initialize is called.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Meter returns reservoir's meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Shutdown gracefully shuts down the Provider installed by Initialize
func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := current
	current = nil
	mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Shutdown(ctx)
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
