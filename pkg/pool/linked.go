package pool

// linkNode is one link of the free chain.
type linkNode[T comparable] struct {
	item T
	next *linkNode[T]
}

// linkedReclaimer is the LinkedList discipline. Idle items hang off head;
// take pops the head and put pushes at the head. Unlinked nodes are kept on
// a spare chain and reused, so steady-state puts do not allocate.
type linkedReclaimer[T comparable] struct {
	head  *linkNode[T]
	spare *linkNode[T]
	count int
}

func newLinkedReclaimer[T comparable]() *linkedReclaimer[T] {
	return &linkedReclaimer[T]{}
}

func (l *linkedReclaimer[T]) push(item T) {
	node := l.spare
	if node != nil {
		l.spare = node.next
	} else {
		node = &linkNode[T]{}
	}
	node.item = item
	node.next = l.head
	l.head = node
	l.count++
}

func (l *linkedReclaimer[T]) pop() (T, bool) {
	var zero T
	node := l.head
	if node == nil {
		return zero, false
	}
	l.head = node.next
	item := node.item

	node.item = zero
	node.next = l.spare
	l.spare = node
	l.count--
	return item, true
}

func (l *linkedReclaimer[T]) len() int {
	return l.count
}

func (l *linkedReclaimer[T]) contains(item T) bool {
	for node := l.head; node != nil; node = node.next {
		if node.item == item {
			return true
		}
	}
	return false
}

// drain empties the chain and drops the spare nodes.
func (l *linkedReclaimer[T]) drain(fn func(T)) {
	for {
		item, ok := l.pop()
		if !ok {
			break
		}
		fn(item)
	}
	l.spare = nil
}
