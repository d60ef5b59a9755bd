package testutil

import (
	"errors"
	"fmt"
)

// Hook names recorded by TrackedItem.
const (
	HookAcquire = "acquire"
	HookRelease = "release"
)

// ErrFactory is returned by TrackedFactory once its failure budget is hit.
var ErrFactory = errors.New("testutil: factory failure")

// TrackedItem is a pool item that records every notification it receives.
// It satisfies the pool's Item, Activatable and Liveness interfaces and
// io.Closer, without importing the pool package.
type TrackedItem struct {
	ID       int
	Template string
	Active   bool
	Dead     bool
	Closed   int
	Hooks    []string

	// PanicOnAcquire is the number of upcoming OnAcquire calls that panic.
	PanicOnAcquire int

	violations int
}

// OnAcquire records an acquire notification.
func (i *TrackedItem) OnAcquire() {
	if i.PanicOnAcquire > 0 {
		i.PanicOnAcquire--
		panic(fmt.Sprintf("tracked-%d: acquire hook failed", i.ID))
	}
	i.record(HookAcquire)
}

// OnRelease records a release notification.
func (i *TrackedItem) OnRelease() { i.record(HookRelease) }

// SetActive records the live/hidden state.
func (i *TrackedItem) SetActive(active bool) { i.Active = active }

// Alive reports false once the item was invalidated with Kill.
func (i *TrackedItem) Alive() bool { return !i.Dead }

// Kill simulates the underlying resource being destroyed outside the pool.
func (i *TrackedItem) Kill() { i.Dead = true }

// Close counts destroy calls.
func (i *TrackedItem) Close() error {
	i.Closed++
	return nil
}

func (i *TrackedItem) String() string {
	return fmt.Sprintf("tracked-%d", i.ID)
}

// Violations counts consecutive notifications in the same direction.
func (i *TrackedItem) Violations() int { return i.violations }

// Count returns how many times hook was recorded.
func (i *TrackedItem) Count(hook string) int {
	n := 0
	for _, h := range i.Hooks {
		if h == hook {
			n++
		}
	}
	return n
}

func (i *TrackedItem) record(hook string) {
	if n := len(i.Hooks); n > 0 && i.Hooks[n-1] == hook {
		i.violations++
	}
	i.Hooks = append(i.Hooks, hook)
}

// TrackedFactory builds TrackedItems with increasing IDs starting at 1.
type TrackedFactory struct {
	// FailAfter makes New fail once this many items were built. Zero never fails.
	FailAfter int
	Created   []*TrackedItem
}

// NewTrackedFactory returns a factory that never fails.
func NewTrackedFactory() *TrackedFactory {
	return &TrackedFactory{}
}

// New builds the next item.
func (f *TrackedFactory) New(template string) (*TrackedItem, error) {
	if f.FailAfter > 0 && len(f.Created) >= f.FailAfter {
		return nil, ErrFactory
	}
	item := &TrackedItem{ID: len(f.Created) + 1, Template: template}
	f.Created = append(f.Created, item)
	return item, nil
}

// TotalViolations sums Violations over every created item.
func (f *TrackedFactory) TotalViolations() int {
	n := 0
	for _, item := range f.Created {
		n += item.Violations()
	}
	return n
}
