package pool

import (
	"io"
	"sync"
)

// Item is a reusable resource managed by a Pool. The pool notifies the item
// every time it changes hands. Implementations must not call back into the
// pool from either method.
type Item interface {
	// OnAcquire is called after the item has been attached to the active
	// target and activated, right before it is handed to the caller.
	OnAcquire()
	// OnRelease is called first thing when the item comes back, before it is
	// deactivated and parked under the idle target.
	OnRelease()
}

// Poolable is the type constraint for pooled items. Items are tracked by
// identity, so T must be comparable; pointer types are the natural choice.
type Poolable interface {
	comparable
	Item
}

// Activatable is implemented by items that have a live/hidden state the pool
// should toggle on take and return.
type Activatable interface {
	SetActive(active bool)
}

// Liveness is implemented by items whose underlying resource can be
// invalidated outside the pool. Destroying an item that reports itself dead
// is a no-op.
type Liveness interface {
	Alive() bool
}

// Factory constructs new items for a pool. template is the pool's configured
// template name and parent is the idle target the item will be parked under.
type Factory[T any] interface {
	Create(template string, parent Target) (T, error)
}

// FactoryFunc adapts an ordinary function to the Factory interface.
type FactoryFunc[T any] func(template string, parent Target) (T, error)

// Create calls f(template, parent).
func (f FactoryFunc[T]) Create(template string, parent Target) (T, error) {
	return f(template, parent)
}

// Destroyer irreversibly releases the resource behind an item. It must
// tolerate items that were already invalidated.
type Destroyer[T any] interface {
	Destroy(item T) error
}

// DestroyerFunc adapts an ordinary function to the Destroyer interface.
type DestroyerFunc[T any] func(item T) error

// Destroy calls f(item).
func (f DestroyerFunc[T]) Destroy(item T) error {
	return f(item)
}

// closeDestroyer closes items implementing io.Closer and ignores the rest.
type closeDestroyer[T any] struct{}

func (closeDestroyer[T]) Destroy(item T) error {
	if c, ok := any(item).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Target is the context an item is attached to, one for idle items and one
// for checked-out items. Attaching is bookkeeping only and must not fail.
type Target interface {
	Attach(item Item)
	Detach(item Item)
}

// Node is a named Target that remembers which items are attached to it.
// Nodes are safe for concurrent use so one node can be shared by several pools.
type Node struct {
	name     string
	mu       sync.RWMutex
	children map[Item]struct{}
}

// NewNode creates an empty node.
func NewNode(name string) *Node {
	return &Node{
		name:     name,
		children: make(map[Item]struct{}),
	}
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// Attach adds item to the node.
func (n *Node) Attach(item Item) {
	n.mu.Lock()
	n.children[item] = struct{}{}
	n.mu.Unlock()
}

// Detach removes item from the node. Detaching an absent item is a no-op.
func (n *Node) Detach(item Item) {
	n.mu.Lock()
	delete(n.children, item)
	n.mu.Unlock()
}

// Contains reports whether item is attached to the node.
func (n *Node) Contains(item Item) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.children[item]
	return ok
}

// Len returns the number of attached items.
func (n *Node) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.children)
}

// Children returns a snapshot of the attached items in no particular order.
func (n *Node) Children() []Item {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Item, 0, len(n.children))
	for item := range n.children {
		out = append(out, item)
	}
	return out
}
