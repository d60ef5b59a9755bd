package pool

// registry is the set of checked-out items. Items live in a dense slice so a
// uniform random pick is a single index, and removal swaps the last element
// into the hole.
type registry[T comparable] struct {
	items []T
	index map[T]int
}

func newRegistry[T comparable]() *registry[T] {
	return &registry[T]{index: make(map[T]int)}
}

func (r *registry[T]) add(item T) {
	if _, ok := r.index[item]; ok {
		return
	}
	r.index[item] = len(r.items)
	r.items = append(r.items, item)
}

func (r *registry[T]) remove(item T) bool {
	i, ok := r.index[item]
	if !ok {
		return false
	}
	last := len(r.items) - 1
	if i != last {
		moved := r.items[last]
		r.items[i] = moved
		r.index[moved] = i
	}
	var zero T
	r.items[last] = zero
	r.items = r.items[:last]
	delete(r.index, item)
	return true
}

func (r *registry[T]) contains(item T) bool {
	_, ok := r.index[item]
	return ok
}

func (r *registry[T]) len() int {
	return len(r.items)
}

func (r *registry[T]) at(i int) T {
	return r.items[i]
}

// snapshot returns a copy that stays valid while the registry mutates.
func (r *registry[T]) snapshot() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}
