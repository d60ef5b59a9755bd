package pool

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Discipline selects the order in which idle items are reused. It is fixed
// for the lifetime of a pool.
type Discipline int

const (
	// Stack keeps idle items in a growable slice; the most recently released
	// item is taken first.
	Stack Discipline = iota
	// LinkedList keeps idle items in a singly-linked free chain. Take pops the
	// head and put pushes at the head, so the order is LIFO as with Stack, but
	// there is no backing array to resize.
	LinkedList
)

// String returns the config name of the discipline.
func (d Discipline) String() string {
	switch d {
	case Stack:
		return "stack"
	case LinkedList:
		return "linked_list"
	default:
		return fmt.Sprintf("discipline(%d)", int(d))
	}
}

// ParseDiscipline parses "stack" or "linked_list" (case-insensitive, "linkedlist"
// and "linked" are accepted too).
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stack":
		return Stack, nil
	case "linked_list", "linkedlist", "linked":
		return LinkedList, nil
	default:
		return Stack, reservoirerrors.Newf(reservoirerrors.ErrorTypeConfig, "unknown discipline %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Discipline) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Discipline) UnmarshalText(text []byte) error {
	parsed, err := ParseDiscipline(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Settings is the immutable configuration of a pool. Build one with
// NewSettings; a pool copies it at construction.
type Settings[T any] struct {
	factory   Factory[T]
	destroyer Destroyer[T]
	options
}

// options holds the non-generic part of Settings so SettingsOption does not
// need a type parameter at call sites.
type options struct {
	templateName     string
	discipline       Discipline
	prewarmSize      int
	maxSize          int
	collectionChecks bool
	activeParent     Target
	idleParent       Target
}

// SettingsOption configures Settings.
type SettingsOption func(*options)

// WithTemplateName sets the template name passed to the factory and reported
// by Pool.TemplateName.
func WithTemplateName(name string) SettingsOption {
	return func(o *options) { o.templateName = name }
}

// WithDiscipline selects the reclamation discipline. The default is Stack.
func WithDiscipline(d Discipline) SettingsOption {
	return func(o *options) { o.discipline = d }
}

// WithPrewarmSize sets how many idle items are created at construction.
func WithPrewarmSize(n int) SettingsOption {
	return func(o *options) { o.prewarmSize = n }
}

// WithMaxSize caps the number of live items created by the pool. Zero means
// unbounded.
func WithMaxSize(n int) SettingsOption {
	return func(o *options) { o.maxSize = n }
}

// WithCollectionChecks enables double-release detection on every put.
func WithCollectionChecks(enabled bool) SettingsOption {
	return func(o *options) { o.collectionChecks = enabled }
}

// WithActiveParent sets the target checked-out items are attached to.
func WithActiveParent(t Target) SettingsOption {
	return func(o *options) { o.activeParent = t }
}

// WithIdleParent sets the target idle items are attached to.
func WithIdleParent(t Target) SettingsOption {
	return func(o *options) { o.idleParent = t }
}

// NewSettings returns Settings for items produced by factory.
//
// Example:
//
//	settings := pool.NewSettings[*Bullet](
//	    pool.FactoryFunc[*Bullet](newBullet),
//	    pool.WithTemplateName("bullet"),
//	    pool.WithMaxSize(64),
//	    pool.WithPrewarmSize(16),
//	)
func NewSettings[T any](factory Factory[T], opts ...SettingsOption) Settings[T] {
	s := Settings[T]{
		factory:   factory,
		destroyer: closeDestroyer[T]{},
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	return s
}

// WithDestroyer returns a copy of s that destroys items with d. The default
// destroyer closes items that implement io.Closer.
func (s Settings[T]) WithDestroyer(d Destroyer[T]) Settings[T] {
	if d == nil {
		d = closeDestroyer[T]{}
	}
	s.destroyer = d
	return s
}

// withParents returns a copy of s with the non-nil targets replacing the
// configured ones.
func (s Settings[T]) withParents(active, idle Target) Settings[T] {
	if active != nil {
		s.activeParent = active
	}
	if idle != nil {
		s.idleParent = idle
	}
	return s
}

// TemplateName returns the configured template name.
func (s Settings[T]) TemplateName() string { return s.templateName }

// Factory returns the item factory.
func (s Settings[T]) Factory() Factory[T] { return s.factory }

// Destroyer returns the item destroyer.
func (s Settings[T]) Destroyer() Destroyer[T] { return s.destroyer }

// Discipline returns the reclamation discipline.
func (s Settings[T]) Discipline() Discipline { return s.discipline }

// PrewarmSize returns the number of items created at construction.
func (s Settings[T]) PrewarmSize() int { return s.prewarmSize }

// MaxSize returns the live item cap, zero meaning unbounded.
func (s Settings[T]) MaxSize() int { return s.maxSize }

// CollectionChecks reports whether double-release detection is enabled.
func (s Settings[T]) CollectionChecks() bool { return s.collectionChecks }

// ActiveParent returns the target for checked-out items.
func (s Settings[T]) ActiveParent() Target { return s.activeParent }

// IdleParent returns the target for idle items.
func (s Settings[T]) IdleParent() Target { return s.idleParent }

// Validate checks the settings for correctness.
func (s Settings[T]) Validate() error {
	if s.factory == nil {
		return reservoirerrors.New(reservoirerrors.ErrorTypeConfig, "factory is required")
	}
	if s.discipline != Stack && s.discipline != LinkedList {
		return reservoirerrors.Newf(reservoirerrors.ErrorTypeConfig, "unknown discipline %d", int(s.discipline))
	}
	if s.prewarmSize < 0 {
		return reservoirerrors.New(reservoirerrors.ErrorTypeConfig, "prewarm_size cannot be negative").
			WithDetail("prewarm_size", s.prewarmSize)
	}
	if s.maxSize < 0 {
		return reservoirerrors.New(reservoirerrors.ErrorTypeConfig, "max_size cannot be negative").
			WithDetail("max_size", s.maxSize)
	}
	if s.maxSize > 0 && s.prewarmSize > s.maxSize {
		return reservoirerrors.New(reservoirerrors.ErrorTypeConfig, "prewarm_size cannot exceed max_size").
			WithDetail("prewarm_size", s.prewarmSize).
			WithDetail("max_size", s.maxSize)
	}
	return nil
}
