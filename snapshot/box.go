package snapshot

import "sync/atomic"

// Box holds the single currently-published Snapshot for a node behind an
// atomic pointer. Load is wait-free; Store is a single atomic swap. This is
// the mechanism behind spec.md §5's "atomic load of a reference-counted
// snapshot pointer" read path.
type Box[T any] struct {
	ptr atomic.Pointer[Snapshot[T]]
}

func (b *Box[T]) Load() *Snapshot[T] {
	return b.ptr.Load()
}

func (b *Box[T]) Store(s *Snapshot[T]) {
	b.ptr.Store(s)
}
