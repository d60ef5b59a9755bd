package pool

// reclaimer holds idle items in discipline order.
type reclaimer[T comparable] interface {
	push(item T)
	pop() (T, bool)
	len() int
	contains(item T) bool
	// drain removes every item, calling fn in pop order.
	drain(fn func(T))
}

// stackReclaimer is the Stack discipline: a LIFO over a growable slice.
type stackReclaimer[T comparable] struct {
	items []T
}

func newStackReclaimer[T comparable](capacity int) *stackReclaimer[T] {
	return &stackReclaimer[T]{items: make([]T, 0, capacity)}
}

func (s *stackReclaimer[T]) push(item T) {
	s.items = append(s.items, item)
}

func (s *stackReclaimer[T]) pop() (T, bool) {
	var zero T
	n := len(s.items)
	if n == 0 {
		return zero, false
	}
	item := s.items[n-1]
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	return item, true
}

func (s *stackReclaimer[T]) len() int {
	return len(s.items)
}

func (s *stackReclaimer[T]) contains(item T) bool {
	for _, it := range s.items {
		if it == item {
			return true
		}
	}
	return false
}

func (s *stackReclaimer[T]) drain(fn func(T)) {
	for {
		item, ok := s.pop()
		if !ok {
			return
		}
		fn(item)
	}
}
