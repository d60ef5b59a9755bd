package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// MeterRecorder reports pool metrics through OpenTelemetry instruments.
type MeterRecorder struct {
	events     metric.Int64Counter
	errors     metric.Int64Counter
	idle       metric.Int64Gauge
	checkedOut metric.Int64Gauge
}

var _ pool.Recorder = (*MeterRecorder)(nil)

// NewMeterRecorder creates the instruments on meter. A nil meter uses the
// global one.
func NewMeterRecorder(meter metric.Meter) (*MeterRecorder, error) {
	if meter == nil {
		meter = Meter()
	}

	events, err := meter.Int64Counter("reservoir.pool.events",
		metric.WithDescription("Item lifecycle events"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}
	errs, err := meter.Int64Counter("reservoir.pool.errors",
		metric.WithDescription("Failed pool operations"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	idle, err := meter.Int64Gauge("reservoir.pool.idle",
		metric.WithDescription("Idle items"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create idle gauge: %w", err)
	}
	checkedOut, err := meter.Int64Gauge("reservoir.pool.checked_out",
		metric.WithDescription("Checked-out items"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create checked-out gauge: %w", err)
	}

	return &MeterRecorder{
		events:     events,
		errors:     errs,
		idle:       idle,
		checkedOut: checkedOut,
	}, nil
}

// ItemEvent implements pool.Recorder.
func (m *MeterRecorder) ItemEvent(poolName string, event pool.Event) {
	m.events.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("pool", poolName),
		attribute.String("event", string(event)),
	))
}

// PoolError implements pool.Recorder.
func (m *MeterRecorder) PoolError(poolName string, errType reservoirerrors.ErrorType) {
	m.errors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("pool", poolName),
		attribute.String("type", string(errType)),
	))
}

// Gauge implements pool.Recorder.
func (m *MeterRecorder) Gauge(poolName string, idle, checkedOut int) {
	attrs := metric.WithAttributes(attribute.String("pool", poolName))
	m.idle.Record(context.Background(), int64(idle), attrs)
	m.checkedOut.Record(context.Background(), int64(checkedOut), attrs)
}
