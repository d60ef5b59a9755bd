// Package workload drives pools with a seeded, weighted mix of operations
// and checks the pool bookkeeping after every step. It backs the simulate
// command and doubles as a soak test for both reclamation disciplines.
package workload

import (
	"context"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/observability"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Op is one pool operation the runner can issue.
type Op string

const (
	OpAcquire       Op = "acquire"
	OpRelease       Op = "release"
	OpReleaseRandom Op = "release_random"
	OpReleaseAll    Op = "release_all"
	OpClear         Op = "clear"
)

// Report summarizes one run. HookViolations sums, over every item the run
// acquired, the notifications that did not alternate.
type Report struct {
	Pool           string           `json:"pool"`
	Kind           string           `json:"kind,omitempty"`
	Seed           uint64           `json:"seed"`
	Steps          int              `json:"steps"`
	Ops            map[Op]int64     `json:"ops"`
	Skipped        int64            `json:"skipped"`
	HookViolations int              `json:"hook_violations"`
	Errors         map[string]int64 `json:"errors,omitempty"`
	Stats          pool.Stats       `json:"stats"`
	Duration       time.Duration    `json:"duration_ns"`
	OpsPerSec      float64          `json:"ops_per_sec"`
}

// UseFunc is called with every item the runner acquires.
type UseFunc[T any] func(ctx context.Context, item T) error

// Option configures a Runner.
type Option[T pool.Poolable] func(*Runner[T])

// WithLogger sets the runner logger.
func WithLogger[T pool.Poolable](l *zap.Logger) Option[T] {
	return func(r *Runner[T]) { r.logger = l }
}

// WithTracer traces each run with the given tracer.
func WithTracer[T pool.Poolable](t trace.Tracer) Option[T] {
	return func(r *Runner[T]) { r.tracer = t }
}

// WithCollector records per-operation latency.
func WithCollector[T pool.Poolable](c *metrics.Collector) Option[T] {
	return func(r *Runner[T]) { r.collector = c }
}

// WithUse sets the function applied to acquired items.
func WithUse[T pool.Poolable](fn UseFunc[T]) Option[T] {
	return func(r *Runner[T]) { r.use = fn }
}

// WithKind labels the report.
func WithKind[T pool.Poolable](kind string) Option[T] {
	return func(r *Runner[T]) { r.kind = kind }
}

// Runner issues operations against a single pool. Like the pool, it must be
// driven from one goroutine.
type Runner[T pool.Poolable] struct {
	pool      *pool.Pool[T]
	cfg       config.WorkloadConfig
	rand      *rand.Rand
	held      []T
	acquired  map[T]struct{}
	use       UseFunc[T]
	kind      string
	logger    *zap.Logger
	tracer    trace.Tracer
	collector *metrics.Collector
}

// NewRunner creates a runner for p. The workload config must be valid.
func NewRunner[T pool.Poolable](p *pool.Pool[T], cfg config.WorkloadConfig, opts ...Option[T]) (*Runner[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner[T]{
		pool:     p,
		cfg:      cfg,
		rand:     pool.NewRand(cfg.Seed),
		acquired: make(map[T]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Named("workload")
	}
	return r, nil
}

// Held returns the items the runner currently has checked out.
func (r *Runner[T]) Held() []T {
	out := make([]T, len(r.held))
	copy(out, r.held)
	return out
}

// Run executes the configured number of steps. Expected pool errors
// (capacity reached, nothing to release) are counted in the report; any
// other error or a bookkeeping violation stops the run.
func (r *Runner[T]) Run(ctx context.Context) (*Report, error) {
	ctx = logger.WithPool(ctx, r.pool.Name())
	report := &Report{
		Pool:   r.pool.Name(),
		Kind:   r.kind,
		Seed:   r.cfg.Seed,
		Steps:  r.cfg.Steps,
		Ops:    make(map[Op]int64),
		Errors: make(map[string]int64),
	}

	err := observability.NewPoolTracer(r.pool.Name(), r.tracer).Trace(ctx, "workload", func(ctx context.Context) error {
		start := time.Now()
		defer func() {
			report.Duration = time.Since(start)
			if secs := report.Duration.Seconds(); secs > 0 {
				report.OpsPerSec = float64(r.cfg.Steps) / secs
			}
		}()

		for step := 0; step < r.cfg.Steps; step++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			op := r.pick()
			if err := r.do(ctx, op, report); err != nil {
				return reservoirerrors.Wrap(err, reservoirerrors.TypeOf(err), "workload step failed").
					WithDetail("step", step).
					WithDetail("op", string(op))
			}
			if err := r.check(); err != nil {
				return err.WithDetail("step", step).WithDetail("op", string(op))
			}
		}
		return nil
	})
	report.Stats = r.pool.Stats()
	report.HookViolations = r.hookViolations()

	r.logger.With(logger.Fields(ctx)...).Info("workload finished",
		zap.Int("steps", report.Steps),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("created", report.Stats.Created),
		zap.Int64("reused", report.Stats.Reused),
		zap.Duration("duration", report.Duration),
		zap.Error(err))
	return report, err
}

func (r *Runner[T]) pick() Op {
	w := r.cfg.Weights
	n := r.rand.IntN(w.Total())
	for _, c := range []struct {
		op     Op
		weight int
	}{
		{OpAcquire, w.Acquire},
		{OpRelease, w.Release},
		{OpReleaseRandom, w.ReleaseRandom},
		{OpReleaseAll, w.ReleaseAll},
		{OpClear, w.Clear},
	} {
		if n < c.weight {
			return c.op
		}
		n -= c.weight
	}
	return OpClear
}

func (r *Runner[T]) do(ctx context.Context, op Op, report *Report) error {
	if r.collector != nil {
		timer := metrics.NewTimer(string(op))
		defer func() { r.collector.ObserveOperation(r.pool.Name(), timer.Name(), timer.Stop()) }()
	}

	report.Ops[op]++
	var err error
	switch op {
	case OpAcquire:
		var item T
		item, err = r.pool.Acquire()
		if err == nil {
			r.held = append(r.held, item)
			r.acquired[item] = struct{}{}
			if r.use != nil {
				if uerr := r.use(ctx, item); uerr != nil {
					return uerr
				}
			}
		}
	case OpRelease:
		if len(r.held) == 0 {
			report.Skipped++
			return nil
		}
		i := r.rand.IntN(len(r.held))
		item := r.held[i]
		r.forget(i)
		err = r.pool.Release(item)
	case OpReleaseRandom:
		var item T
		item, err = r.pool.ReleaseRandom()
		if err == nil {
			r.forgetItem(item)
		}
	case OpReleaseAll:
		err = r.pool.ReleaseAll()
		r.held = r.held[:0]
	case OpClear:
		r.pool.Clear()
	}

	if err == nil {
		return nil
	}
	errType := reservoirerrors.TypeOf(err)
	report.Errors[string(errType)]++
	switch errType {
	case reservoirerrors.ErrorTypeCapacityExceeded, reservoirerrors.ErrorTypeEmptyRegistry:
		return nil
	default:
		return err
	}
}

// check verifies the pool bookkeeping against what the runner holds, and
// that no acquired item saw two notifications in the same direction.
func (r *Runner[T]) check() *reservoirerrors.Error {
	idle, out, all := r.pool.CountIdle(), r.pool.CountCheckedOut(), r.pool.CountAll()
	violation := func(msg string) *reservoirerrors.Error {
		return reservoirerrors.New(reservoirerrors.ErrorTypeInternal, msg).
			WithDetail("pool", r.pool.Name()).
			WithDetail("idle", idle).
			WithDetail("checked_out", out).
			WithDetail("held", len(r.held))
	}

	if all != idle+out {
		return violation("total does not equal idle plus checked out")
	}
	if out != len(r.held) {
		return violation("checked out count does not match held items")
	}
	if limit := r.pool.Settings().MaxSize(); limit > 0 && all > limit {
		return violation("live items exceed max size")
	}
	for _, item := range r.held {
		if !r.pool.IsCheckedOut(item) {
			return violation("held item is not registered as checked out")
		}
		if a, ok := any(item).(interface{ Active() bool }); ok && !a.Active() {
			return violation("checked out item is hidden")
		}
	}
	if n := r.hookViolations(); n > 0 {
		return violation("item hooks did not alternate").WithDetail("hook_violations", n)
	}
	return nil
}

// hookViolations sums the alternation violations of every acquired item
// that counts them.
func (r *Runner[T]) hookViolations() int {
	n := 0
	for item := range r.acquired {
		if v, ok := any(item).(interface{ Violations() int }); ok {
			n += v.Violations()
		}
	}
	return n
}

func (r *Runner[T]) forget(i int) {
	last := len(r.held) - 1
	r.held[i] = r.held[last]
	var zero T
	r.held[last] = zero
	r.held = r.held[:last]
}

func (r *Runner[T]) forgetItem(item T) {
	for i, h := range r.held {
		if h == item {
			r.forget(i)
			return
		}
	}
}
