package observer

import (
	"sync"

	"github.com/delaneyj/reactograph/graph"
	"github.com/delaneyj/reactograph/snapshot"
)

// Observer is a read handle onto a node — either a Source's or a derived
// node's. The implicit-dereference operator from spec §4.4 has no direct
// Go equivalent, so Get is the idiomatic stand-in for "**observer".
type Observer[T any] struct {
	node *graph.Node
}

// GetSnapshot returns the node's currently published snapshot. If called
// while an evaluator is running on this goroutine, it also records this
// node as a dependency of whatever is being evaluated (spec §4.2).
func (o *Observer[T]) GetSnapshot() *snapshot.Snapshot[T] {
	return toTyped[T](o.node.Snapshot())
}

// Get is shorthand for GetSnapshot().Value().
func (o *Observer[T]) Get() T {
	return o.GetSnapshot().Value()
}

// ID returns the underlying node's stable identity, for debugging.
func (o *Observer[T]) ID() uint64 { return o.node.ID() }

// State returns the node's current state flag (fresh/dirty/evaluating/failed).
func (o *Observer[T]) State() graph.State { return o.node.State() }

// AddCallback registers fn to run on every future publication, and once
// immediately with the current value (spec §4.4). The returned handle
// cancels the subscription; it is safe to cancel from inside fn itself.
func (o *Observer[T]) AddCallback(fn func(*snapshot.Snapshot[T])) *CallbackHandle {
	id := o.node.AddCallback(func(s *snapshot.Snapshot[any]) {
		fn(toTyped[T](s))
	})
	return &CallbackHandle{node: o.node, id: id}
}

// CallbackHandle controls the lifetime of one AddCallback subscription.
// Reassigning the variable holding a CallbackHandle without cancelling it
// first leaks the subscription (spec §4.4 P6) — callers that want "only
// one live callback at a time" must call Cancel before overwriting the
// variable, exactly as with any other Go resource handle.
type CallbackHandle struct {
	mu        sync.Mutex
	node      *graph.Node
	id        uint64
	cancelled bool
}

// Cancel unregisters the callback. Calling it twice, or from inside the
// callback's own invocation, is safe. A callback invocation already
// running concurrently on a worker when Cancel returns is allowed to
// finish (spec §5's cancellation guarantee is about *future* invocations
// only).
func (h *CallbackHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	h.cancelled = true
	h.node.RemoveCallback(h.id)
}
