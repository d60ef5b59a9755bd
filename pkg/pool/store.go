package pool

import (
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// store is the reclamation store: it keeps idle items in discipline order,
// creates items when empty and destroys them when shedding or clearing.
// total counts every live item it created, idle or checked out.
type store[T Poolable] struct {
	idle    reclaimer[T]
	hooks   *dispatcher[T]
	maxSize int
	checks  bool
	total   int

	created   int64
	destroyed int64
	reused    int64
	shed      int64
}

func newStore[T Poolable](s Settings[T], hooks *dispatcher[T]) *store[T] {
	st := &store[T]{
		hooks:   hooks,
		maxSize: s.maxSize,
		checks:  s.collectionChecks,
	}
	switch s.discipline {
	case LinkedList:
		st.idle = newLinkedReclaimer[T]()
	default:
		st.idle = newStackReclaimer[T](s.prewarmSize)
	}
	return st
}

// take pops an idle item, or creates one when the store is empty.
func (s *store[T]) take() (item T, reused bool, err error) {
	if it, ok := s.idle.pop(); ok {
		s.reused++
		return it, true, nil
	}
	item, err = s.create()
	return item, false, err
}

// create enforces the hard cap and runs the factory.
func (s *store[T]) create() (T, error) {
	var zero T
	if s.maxSize > 0 && s.total >= s.maxSize {
		return zero, reservoirerrors.New(reservoirerrors.ErrorTypeCapacityExceeded, "pool is at max size").
			WithDetail("pool", s.hooks.pool).
			WithDetail("max_size", s.maxSize).
			WithDetail("total", s.total)
	}
	item, err := s.hooks.create()
	if err != nil {
		return zero, err
	}
	s.total++
	s.created++
	return item, nil
}

// prewarm creates n idle items.
func (s *store[T]) prewarm(n int) error {
	for i := 0; i < n; i++ {
		item, err := s.create()
		if err != nil {
			return err
		}
		s.idle.push(item)
	}
	return nil
}

// checkReturnable fails with duplicate_release when collection checks are on
// and item is already idle.
func (s *store[T]) checkReturnable(item T) error {
	if s.checks && s.idle.contains(item) {
		return reservoirerrors.New(reservoirerrors.ErrorTypeDuplicateRelease, "item is already idle").
			WithDetail("pool", s.hooks.pool)
	}
	return nil
}

// put parks a returned item. When the idle set already holds maxSize items
// the incoming item is destroyed instead and put reports shed. create refuses
// to go past maxSize live items, so at most maxSize-1 items are idle while
// one is being returned: the shed branch only guards the idle bound and is
// not reached through Pool.
func (s *store[T]) put(item T) (shed bool, err error) {
	if err := s.checkReturnable(item); err != nil {
		return false, err
	}
	if s.maxSize > 0 && s.idle.len() >= s.maxSize {
		s.discard(item)
		s.shed++
		return true, nil
	}
	s.idle.push(item)
	return false, nil
}

func (s *store[T]) discard(item T) {
	s.hooks.destroy(item)
	s.total--
	s.destroyed++
}

// clear destroys every idle item and returns how many were purged.
func (s *store[T]) clear() int {
	n := 0
	s.idle.drain(func(item T) {
		s.discard(item)
		n++
	})
	return n
}

func (s *store[T]) countIdle() int {
	return s.idle.len()
}
