// Package pool implements a generic, bounded object pool with lifecycle
// hooks. Items are created on demand by a Factory, lent out with Acquire,
// taken back with Release and destroyed by a Destroyer when the pool sheds
// them, clears its idle set or is disposed.
//
// Architecture
//
// A Pool is made of three parts:
//
//   - a reclamation store holding idle items, with a Stack (slice) or
//     LinkedList (free chain with recycled nodes) discipline
//   - a registry of checked-out items, used for ownership checks, bulk
//     release and O(1) random release
//   - a hook dispatcher running the create, take, return and destroy
//     transitions, including activation and attachment to a Target
//
// Every item the pool created and has not destroyed is either idle or
// checked out, never both. When MaxSize is set the pool never holds more
// than MaxSize live items; Acquire fails with capacity_exceeded instead.
//
// Item Contract
//
// Pooled types implement Item. They may additionally implement Activatable
// to be shown and hidden, Liveness to opt out of destruction once their
// resource is gone, and io.Closer to be closed by the default Destroyer.
//
//	type Bullet struct {
//		visible bool
//	}
//
//	func (b *Bullet) OnAcquire()            { /* reset state */ }
//	func (b *Bullet) OnRelease()            {}
//	func (b *Bullet) SetActive(active bool) { b.visible = active }
//
// Usage Patterns
//
// Creating a pool directly:
//
//	settings := pool.NewSettings[*Bullet](
//		pool.FactoryFunc[*Bullet](func(string, pool.Target) (*Bullet, error) {
//			return &Bullet{}, nil
//		}),
//		pool.WithTemplateName("bullet"),
//		pool.WithPrewarmSize(16),
//		pool.WithMaxSize(64),
//	)
//	p, err := pool.New(settings, pool.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer p.Dispose()
//
//	b, err := p.Acquire()
//	...
//	err = p.Release(b)
//
// Or through the two-stage Builder, which can override the attachment
// targets carried by the settings:
//
//	p, err := pool.Builder[*Bullet]().
//		WithSettings(settings).
//		WithActiveParent(world).
//		Build()
//
// Error Handling
//
// All errors are *reservoirerrors.Error values and match the package
// sentinels with errors.Is:
//
//	if errors.Is(err, reservoirerrors.ErrCapacityExceeded) {
//		// retry after releasing something
//	}
//
// Failed operations leave the pool unchanged.
//
// Thread Safety
//
// A Pool is not safe for concurrent use. Node is, so a Target can be shared
// between pools owned by different goroutines.
package pool
