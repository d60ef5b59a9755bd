package pool

import "github.com/ajitpratap0/reservoir/pkg/reservoirerrors"

// Event names an item transition reported to a Recorder.
type Event string

const (
	// EventCreated fires after the factory produced a new item.
	EventCreated Event = "created"
	// EventDestroyed fires after an idle item was purged.
	EventDestroyed Event = "destroyed"
	// EventAcquired fires on every successful Acquire.
	EventAcquired Event = "acquired"
	// EventReused fires when Acquire was served from the idle store.
	EventReused Event = "reused"
	// EventReleased fires on every successful Release.
	EventReleased Event = "released"
	// EventShed fires when a released item was destroyed because the idle
	// store was full.
	EventShed Event = "shed"
)

// Recorder receives pool metrics. Implementations live in pkg/metrics
// (Prometheus) and pkg/observability (OpenTelemetry).
type Recorder interface {
	ItemEvent(pool string, event Event)
	PoolError(pool string, errType reservoirerrors.ErrorType)
	Gauge(pool string, idle, checkedOut int)
}

type nopRecorder struct{}

func (nopRecorder) ItemEvent(string, Event)                     {}
func (nopRecorder) PoolError(string, reservoirerrors.ErrorType) {}
func (nopRecorder) Gauge(string, int, int)                      {}

// MultiRecorder fans every call out to each of rs in order.
func MultiRecorder(rs ...Recorder) Recorder {
	return multiRecorder(rs)
}

type multiRecorder []Recorder

func (m multiRecorder) ItemEvent(pool string, event Event) {
	for _, r := range m {
		r.ItemEvent(pool, event)
	}
}

func (m multiRecorder) PoolError(pool string, errType reservoirerrors.ErrorType) {
	for _, r := range m {
		r.PoolError(pool, errType)
	}
}

func (m multiRecorder) Gauge(pool string, idle, checkedOut int) {
	for _, r := range m {
		r.Gauge(pool, idle, checkedOut)
	}
}
