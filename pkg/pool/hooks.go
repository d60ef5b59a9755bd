package pool

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// dispatcher runs the lifecycle hooks at each item transition. Each hook runs
// exactly once per transition; the store and the controller decide when.
type dispatcher[T Poolable] struct {
	pool      string
	template  string
	factory   Factory[T]
	destroyer Destroyer[T]
	active    Target
	idle      Target
	logger    *zap.Logger
	recorder  Recorder
}

func newDispatcher[T Poolable](name string, s Settings[T], logger *zap.Logger, recorder Recorder) *dispatcher[T] {
	return &dispatcher[T]{
		pool:      name,
		template:  s.templateName,
		factory:   s.factory,
		destroyer: s.destroyer,
		active:    s.activeParent,
		idle:      s.idleParent,
		logger:    logger,
		recorder:  recorder,
	}
}

// create builds a new item and parks it under the idle target. A factory
// error, panic, or zero-value item is reported as creation_failed.
func (d *dispatcher[T]) create() (item T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			item = zero
			err = reservoirerrors.Newf(reservoirerrors.ErrorTypeCreationFailed, "factory panicked: %v", r).
				WithDetail("pool", d.pool)
		}
	}()

	item, err = d.factory.Create(d.template, d.idle)
	if err != nil {
		var zero T
		return zero, reservoirerrors.Wrap(err, reservoirerrors.ErrorTypeCreationFailed, "factory failed").
			WithDetail("pool", d.pool)
	}
	var zero T
	if item == zero {
		return zero, reservoirerrors.New(reservoirerrors.ErrorTypeCreationFailed, "factory returned a zero item").
			WithDetail("pool", d.pool)
	}

	d.onCreate(item)
	return item, nil
}

func (d *dispatcher[T]) onCreate(item T) {
	if d.idle != nil {
		d.idle.Attach(item)
	}
	setActive(item, false)
	d.recorder.ItemEvent(d.pool, EventCreated)
	d.logger.Debug("item created", zap.String("pool", d.pool), itemField(item))
}

// onTake moves an item Idle -> CheckedOut: attach, activate, then notify.
func (d *dispatcher[T]) onTake(item T) {
	if d.idle != nil {
		d.idle.Detach(item)
	}
	if d.active != nil {
		d.active.Attach(item)
	}
	setActive(item, true)
	item.OnAcquire()
}

// abandon undoes the attach and activation of an interrupted onTake so the
// item can be destroyed as if it were idle.
func (d *dispatcher[T]) abandon(item T) {
	setActive(item, false)
	if d.active != nil {
		d.active.Detach(item)
	}
}

// onReturn moves an item CheckedOut -> Idle: notify, deactivate, then attach.
func (d *dispatcher[T]) onReturn(item T) {
	item.OnRelease()
	setActive(item, false)
	if d.active != nil {
		d.active.Detach(item)
	}
	if d.idle != nil {
		d.idle.Attach(item)
	}
}

// destroy purges an idle item. Items that report themselves dead are left
// alone, and destroyer failures are logged and swallowed since nothing else
// can be done with an item on its way out.
func (d *dispatcher[T]) destroy(item T) {
	if d.idle != nil {
		d.idle.Detach(item)
	}
	d.recorder.ItemEvent(d.pool, EventDestroyed)

	if l, ok := any(item).(Liveness); ok && !l.Alive() {
		d.logger.Debug("item already invalid, skipping destroy", zap.String("pool", d.pool))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("destroyer panicked", zap.String("pool", d.pool), zap.Any("panic", r))
		}
	}()
	if err := d.destroyer.Destroy(item); err != nil {
		d.logger.Warn("destroyer failed", zap.String("pool", d.pool), zap.Error(err))
		return
	}
	d.logger.Debug("item destroyed", zap.String("pool", d.pool), itemField(item))
}

func setActive(item any, active bool) {
	if a, ok := item.(Activatable); ok {
		a.SetActive(active)
	}
}

func itemField(item any) zap.Field {
	if s, ok := item.(fmt.Stringer); ok {
		return zap.Stringer("item", s)
	}
	return zap.String("item_type", fmt.Sprintf("%T", item))
}
