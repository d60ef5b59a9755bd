package observability_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/observability"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
	"github.com/ajitpratap0/reservoir/pkg/testutil"
)

func testConfig() observability.Config {
	return observability.Config{
		ServiceName:    "reservoir-test",
		ServiceVersion: "test",
		Environment:    "test",
		SamplingRate:   1.0,
	}
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func attr(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.AsString()
}

func TestPoolTracerRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	p, err := observability.NewProvider(testConfig(), observability.WithSpanProcessor(rec))
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	pt := observability.NewPoolTracer("bullets", p.Tracer())
	ctx := context.Background()
	require.NoError(t, pt.Trace(ctx, "acquire", func(context.Context) error { return nil }))
	err = pt.Trace(ctx, "release", func(context.Context) error { return reservoirerrors.ErrNotOwned })
	assert.True(t, errors.Is(err, reservoirerrors.ErrNotOwned))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "pool.bullets.acquire", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "pool.bullets.release", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("pool.name", "bullets"))
}

func TestSamplingRateZeroDropsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	cfg := testConfig()
	cfg.SamplingRate = 0
	p, err := observability.NewProvider(cfg, observability.WithSpanProcessor(rec))
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	_, span := observability.StartSpan(context.Background(), p.Tracer(), "dropped")
	span.SetAttribute("steps", 10)
	span.End()
	assert.Empty(t, rec.Ended())
}

func TestStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.Enabled = true
	cfg.Writer = &buf
	p, err := observability.NewProvider(cfg)
	require.NoError(t, err)

	_, span := observability.StartSpan(context.Background(), p.Tracer(), "workload.run")
	span.SetAttribute("seed", uint64(7))
	span.AddEvent("checkpoint")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "workload.run")
	assert.Contains(t, buf.String(), "reservoir-test")
}

func TestMeterRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := observability.NewProvider(testConfig(), observability.WithMetricReader(reader))
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	mr, err := observability.NewMeterRecorder(p.Meter())
	require.NoError(t, err)

	f := testutil.NewTrackedFactory()
	settings := pool.NewSettings[*testutil.TrackedItem](
		pool.FactoryFunc[*testutil.TrackedItem](func(template string, _ pool.Target) (*testutil.TrackedItem, error) {
			return f.New(template)
		}))
	bp, err := pool.New(settings,
		pool.WithName("bullets"),
		pool.WithLogger(zaptest.NewLogger(t)),
		pool.WithRecorder(mr))
	require.NoError(t, err)

	a, err := bp.Acquire()
	require.NoError(t, err)
	_, err = bp.Acquire()
	require.NoError(t, err)
	require.NoError(t, bp.Release(a))
	require.Error(t, bp.Release(a))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	m, ok := findMetric(rm, "reservoir.pool.events")
	require.True(t, ok)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	events := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		assert.Equal(t, "bullets", attr(dp.Attributes, "pool"))
		events[attr(dp.Attributes, "event")] += dp.Value
	}
	assert.Equal(t, int64(2), events["created"])
	assert.Equal(t, int64(2), events["acquired"])
	assert.Equal(t, int64(1), events["released"])

	m, ok = findMetric(rm, "reservoir.pool.errors")
	require.True(t, ok)
	errSum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errSum.DataPoints, 1)
	assert.Equal(t, "not_owned", attr(errSum.DataPoints[0].Attributes, "type"))

	m, ok = findMetric(rm, "reservoir.pool.idle")
	require.True(t, ok)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)

	require.NoError(t, bp.Dispose())
}

func TestInitializeInstallsGlobals(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	_, err := observability.Initialize(testConfig(), observability.WithSpanProcessor(rec))
	require.NoError(t, err)
	defer func() { require.NoError(t, observability.Shutdown(context.Background())) }()

	handler := observability.TracingMiddleware("reservoir")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("traceparent"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /metrics", spans[0].Name())
}

func TestFromConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	cfg := observability.FromConfig(config.TracingConfig{
		Enabled:     true,
		ServiceName: "svc",
		SampleRate:  0.5,
		Pretty:      true,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 0.5, cfg.SamplingRate)
	assert.True(t, cfg.Pretty)
}

func TestShutdownWithoutInitialize(t *testing.T) {
	assert.NoError(t, observability.Shutdown(context.Background()))
}
