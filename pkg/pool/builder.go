package pool

// SettingsStage is the first stage of the pool builder.
type SettingsStage[T Poolable] interface {
	WithSettings(settings Settings[T]) PoolStage[T]
}

// PoolStage is the second stage of the pool builder. It can override the
// attachment targets carried by the settings and finalizes into a ready,
// prewarmed Pool.
type PoolStage[T Poolable] interface {
	WithActiveParent(target Target) PoolStage[T]
	WithIdleParent(target Target) PoolStage[T]
	WithOptions(opts ...Option) PoolStage[T]
	Build() (*Pool[T], error)
}

// Builder starts a two-stage pool builder.
//
// Example:
//
//	p, err := pool.Builder[*Bullet]().
//	    WithSettings(settings).
//	    WithIdleParent(pool.NewNode("magazine")).
//	    WithActiveParent(pool.NewNode("world")).
//	    Build()
func Builder[T Poolable]() SettingsStage[T] {
	return &builder[T]{}
}

type builder[T Poolable] struct {
	settings Settings[T]
	active   Target
	idle     Target
	opts     []Option
}

func (b *builder[T]) WithSettings(settings Settings[T]) PoolStage[T] {
	b.settings = settings
	return b
}

func (b *builder[T]) WithActiveParent(target Target) PoolStage[T] {
	b.active = target
	return b
}

func (b *builder[T]) WithIdleParent(target Target) PoolStage[T] {
	b.idle = target
	return b
}

func (b *builder[T]) WithOptions(opts ...Option) PoolStage[T] {
	b.opts = append(b.opts, opts...)
	return b
}

// Build applies the parent overrides to a copy of the settings and creates
// the pool. Nil overrides keep the targets from the settings.
func (b *builder[T]) Build() (*Pool[T], error) {
	return New(b.settings.withParents(b.active, b.idle), b.opts...)
}
