package adapters

import (
	"sync/atomic"

	"github.com/delaneyj/reactograph/observer"
	"github.com/delaneyj/reactograph/snapshot"
)

// Atomic is a read-mostly view of an Observer[T], kept up to date via a
// subscription and read through a single atomic.Pointer[T] load — no
// snapshot bookkeeping, no version check, just "whatever the last
// callback stored." This is folly's AtomicObserver<T> contract: callers
// that are fine racing an in-flight update get a cheaper read than
// GetSnapshot's dependency-recording path.
type Atomic[T any] struct {
	ptr    atomic.Pointer[T]
	handle *observer.CallbackHandle
}

// NewAtomic subscribes to src and keeps Load's cached copy current.
func NewAtomic[T any](src *observer.Observer[T]) *Atomic[T] {
	a := &Atomic[T]{}
	a.handle = src.AddCallback(func(s *snapshot.Snapshot[T]) {
		v := s.Value()
		a.ptr.Store(&v)
	})
	return a
}

// Load returns the most recently observed value.
func (a *Atomic[T]) Load() T {
	if v := a.ptr.Load(); v != nil {
		return *v
	}
	var zero T
	return zero
}

// Close cancels the underlying subscription.
func (a *Atomic[T]) Close() {
	a.handle.Cancel()
}
