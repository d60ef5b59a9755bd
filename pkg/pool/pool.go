package pool

import (
	"math/rand/v2"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Rand picks the victim for ReleaseRandom. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Option configures the collaborators of a Pool that are not part of its
// Settings.
type Option func(*poolConfig)

type poolConfig struct {
	name     string
	logger   *zap.Logger
	recorder Recorder
	rand     Rand
}

// WithName sets the name used in logs and metrics. It defaults to the
// template name.
func WithName(name string) Option {
	return func(c *poolConfig) { c.name = name }
}

// WithLogger sets the pool logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *poolConfig) { c.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *poolConfig) { c.recorder = r }
}

// WithRand sets the random source used by ReleaseRandom.
func WithRand(r Rand) Option {
	return func(c *poolConfig) { c.rand = r }
}

// Pool lends out items and takes them back. Every item it created and has
// not destroyed is either idle in the store or checked out in the registry,
// never both.
//
// A Pool is not safe for concurrent use. Callers sharing one across
// goroutines must serialize access themselves.
type Pool[T Poolable] struct {
	name     string
	settings Settings[T]
	hooks    *dispatcher[T]
	store    *store[T]
	out      *registry[T]
	rand     Rand
	logger   *zap.Logger
	recorder Recorder
	disposed bool
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Name       string `json:"name"`
	Template   string `json:"template"`
	Discipline string `json:"discipline"`
	Idle       int    `json:"idle"`
	CheckedOut int    `json:"checked_out"`
	Total      int    `json:"total"`
	MaxSize    int    `json:"max_size"`
	Created    int64  `json:"created"`
	Destroyed  int64  `json:"destroyed"`
	Reused     int64  `json:"reused"`
	Shed       int64  `json:"shed"`
	Disposed   bool   `json:"disposed"`
}

// New validates settings, creates the pool and prewarms it. If prewarming
// fails, the items created so far are destroyed and the error is returned.
func New[T Poolable](settings Settings[T], opts ...Option) (*Pool[T], error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cfg := poolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = settings.templateName
	}
	if cfg.name == "" {
		cfg.name = "pool"
	}
	if cfg.logger == nil {
		cfg.logger = logger.Named("pool")
	}
	if cfg.recorder == nil {
		cfg.recorder = nopRecorder{}
	}
	if cfg.rand == nil {
		cfg.rand = NewRand(uint64(time.Now().UnixNano()))
	}

	hooks := newDispatcher(cfg.name, settings, cfg.logger, cfg.recorder)
	p := &Pool[T]{
		name:     cfg.name,
		settings: settings,
		hooks:    hooks,
		store:    newStore(settings, hooks),
		out:      newRegistry[T](),
		rand:     cfg.rand,
		logger:   cfg.logger,
		recorder: cfg.recorder,
	}

	if err := p.store.prewarm(settings.prewarmSize); err != nil {
		p.store.clear()
		p.recorder.PoolError(p.name, reservoirerrors.TypeOf(err))
		return nil, err
	}

	runtime.SetFinalizer(p, (*Pool[T]).finalize)
	p.gauge()
	p.logger.Info("pool created",
		zap.String("pool", p.name),
		zap.Stringer("discipline", settings.discipline),
		zap.Int("prewarm_size", settings.prewarmSize),
		zap.Int("max_size", settings.maxSize),
		zap.Bool("collection_checks", settings.collectionChecks))
	return p, nil
}

// Acquire hands out an idle item, or a new one when none is idle.
func (p *Pool[T]) Acquire() (T, error) {
	var zero T
	if p.disposed {
		return zero, p.fail(p.disposedError())
	}

	item, reused, err := p.store.take()
	if err != nil {
		return zero, p.fail(err)
	}
	p.checkout(item)

	if reused {
		p.recorder.ItemEvent(p.name, EventReused)
	}
	p.recorder.ItemEvent(p.name, EventAcquired)
	p.gauge()
	return item, nil
}

// checkout runs the acquire hooks and registers item as checked out. An item
// whose OnAcquire panics is destroyed before the panic propagates, so it
// never holds a capacity slot without being idle or checked out.
func (p *Pool[T]) checkout(item T) {
	defer func() {
		if r := recover(); r != nil {
			p.hooks.abandon(item)
			p.store.discard(item)
			p.gauge()
			p.logger.Error("acquire hook panicked, item destroyed",
				zap.String("pool", p.name), zap.Any("panic", r))
			panic(r)
		}
	}()
	p.hooks.onTake(item)
	p.out.add(item)
}

// Release takes back a checked-out item. Releasing an item that is not
// checked out from this pool fails with not_owned, or duplicate_release when
// collection checks are enabled and the item is already idle.
func (p *Pool[T]) Release(item T) error {
	if p.disposed {
		return p.fail(p.disposedError())
	}
	if !p.out.contains(item) {
		if err := p.store.checkReturnable(item); err != nil {
			return p.fail(err)
		}
		return p.fail(reservoirerrors.New(reservoirerrors.ErrorTypeNotOwned, "item is not checked out from this pool").
			WithDetail("pool", p.name))
	}

	p.hooks.onReturn(item)
	p.out.remove(item)
	shed, err := p.store.put(item)
	if err != nil {
		return p.fail(err)
	}

	if shed {
		p.recorder.ItemEvent(p.name, EventShed)
		p.logger.Debug("idle store full, item shed", zap.String("pool", p.name))
	}
	p.recorder.ItemEvent(p.name, EventReleased)
	p.gauge()
	return nil
}

// ReleaseRandom releases one checked-out item chosen uniformly at random and
// returns it.
func (p *Pool[T]) ReleaseRandom() (T, error) {
	var zero T
	if p.disposed {
		return zero, p.fail(p.disposedError())
	}
	n := p.out.len()
	if n == 0 {
		return zero, p.fail(reservoirerrors.New(reservoirerrors.ErrorTypeEmptyRegistry, "no items are checked out").
			WithDetail("pool", p.name))
	}
	item := p.out.at(p.rand.IntN(n))
	if err := p.Release(item); err != nil {
		return zero, err
	}
	return item, nil
}

// ReleaseAll releases every checked-out item exactly once.
func (p *Pool[T]) ReleaseAll() error {
	var errs error
	for _, item := range p.out.snapshot() {
		errs = multierr.Append(errs, p.Release(item))
	}
	return errs
}

// Clear destroys every idle item. Checked-out items are not affected.
func (p *Pool[T]) Clear() {
	n := p.store.clear()
	if n > 0 {
		p.logger.Debug("idle items cleared", zap.String("pool", p.name), zap.Int("count", n))
	}
	p.gauge()
}

// Dispose releases every checked-out item, then destroys every idle item.
// Calling Dispose more than once is a no-op.
func (p *Pool[T]) Dispose() error {
	if p.disposed {
		return nil
	}
	err := p.ReleaseAll()
	p.Clear()
	p.disposed = true
	runtime.SetFinalizer(p, nil)

	p.logger.Info("pool disposed",
		zap.String("pool", p.name),
		zap.Int64("created", p.store.created),
		zap.Int64("destroyed", p.store.destroyed))
	return err
}

// Close implements io.Closer by calling Dispose.
func (p *Pool[T]) Close() error {
	return p.Dispose()
}

// CountIdle returns the number of idle items.
func (p *Pool[T]) CountIdle() int {
	return p.store.countIdle()
}

// CountCheckedOut returns the number of checked-out items.
func (p *Pool[T]) CountCheckedOut() int {
	return p.out.len()
}

// CountAll returns the number of live items created by the pool.
func (p *Pool[T]) CountAll() int {
	return p.store.total
}

// CheckedOut returns a snapshot of the checked-out items.
func (p *Pool[T]) CheckedOut() []T {
	return p.out.snapshot()
}

// IsCheckedOut reports whether item is currently lent out by this pool.
func (p *Pool[T]) IsCheckedOut(item T) bool {
	return p.out.contains(item)
}

// Name returns the name used in logs and metrics.
func (p *Pool[T]) Name() string {
	return p.name
}

// TemplateName returns the configured template name.
func (p *Pool[T]) TemplateName() string {
	return p.settings.templateName
}

// Discipline returns the reclamation discipline.
func (p *Pool[T]) Discipline() Discipline {
	return p.settings.discipline
}

// Settings returns the settings the pool was built with.
func (p *Pool[T]) Settings() Settings[T] {
	return p.settings
}

// Disposed reports whether Dispose has been called.
func (p *Pool[T]) Disposed() bool {
	return p.disposed
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Name:       p.name,
		Template:   p.settings.templateName,
		Discipline: p.settings.discipline.String(),
		Idle:       p.store.countIdle(),
		CheckedOut: p.out.len(),
		Total:      p.store.total,
		MaxSize:    p.settings.maxSize,
		Created:    p.store.created,
		Destroyed:  p.store.destroyed,
		Reused:     p.store.reused,
		Shed:       p.store.shed,
		Disposed:   p.disposed,
	}
}

func (p *Pool[T]) fail(err error) error {
	p.recorder.PoolError(p.name, reservoirerrors.TypeOf(err))
	return err
}

func (p *Pool[T]) disposedError() error {
	return reservoirerrors.New(reservoirerrors.ErrorTypeDisposed, "pool has been disposed").
		WithDetail("pool", p.name)
}

func (p *Pool[T]) gauge() {
	p.recorder.Gauge(p.name, p.store.countIdle(), p.out.len())
}

// finalize only reports a leaked pool; cleanup is the caller's job.
func (p *Pool[T]) finalize() {
	if p.disposed {
		return
	}
	p.logger.Warn("pool garbage collected without Dispose",
		zap.String("pool", p.name),
		zap.Int("idle", p.store.countIdle()),
		zap.Int("checked_out", p.out.len()))
}
