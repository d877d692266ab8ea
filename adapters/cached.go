package adapters

import (
	"sync"

	"github.com/delaneyj/reactograph/observer"
	"github.com/delaneyj/reactograph/snapshot"
)

// Cached memoizes src's snapshot per caller-supplied key, standing in for
// folly's TLObserver<T>. Go exposes no goroutine/thread identity to key
// a real thread-local cache by, so the caller supplies whatever
// partitioning makes sense for it (a worker-pool slot index, a request
// id). Get reads src's current snapshot on every call and returns the
// cached entry for that key while it is still at src's current version,
// so repeated Gets between publications return the same *Snapshot.
type Cached[K comparable, T any] struct {
	src *observer.Observer[T]

	mu    sync.Mutex
	byKey map[K]*snapshot.Snapshot[T]
}

// NewCached creates a cache in front of src.
func NewCached[K comparable, T any](src *observer.Observer[T]) *Cached[K, T] {
	return &Cached[K, T]{src: src, byKey: make(map[K]*snapshot.Snapshot[T])}
}

// Get returns the cached snapshot for key, refreshing it from src first if
// it is missing or stale.
func (c *Cached[K, T]) Get(key K) *snapshot.Snapshot[T] {
	latest := c.src.GetSnapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.byKey[key]; ok && cur.Version() == latest.Version() {
		return cur
	}
	c.byKey[key] = latest
	return latest
}

// Invalidate drops key's cache entry, so the next Get for key stores the
// snapshot it reads from src instead of returning the old entry.
func (c *Cached[K, T]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byKey, key)
}
