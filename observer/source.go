// Package observer is the public API described in spec §6: Source,
// Observer, MakeObserver, and CallbackHandle. It wraps the type-erased
// graph.Node with the caller's concrete T, performing the type assertions
// at the boundary so the rest of the engine never has to know about T.
package observer

import (
	"github.com/delaneyj/reactograph/graph"
	"github.com/delaneyj/reactograph/manager"
	"github.com/delaneyj/reactograph/snapshot"
)

// Source is an externally-writable leaf node (spec §4.3's set-value
// source). T is constrained to comparable, matching every signal variant
// in the teacher repository (alien.WriteableSignal, rocket.WriteableSignal,
// dumbdumb.WriteableSignal, reactively.Reactive all carry the same
// constraint) — it is what lets the engine decide, generically, whether a
// republished value actually changed.
type Source[T comparable] struct {
	node *graph.Node
}

// NewSource creates a source with an initial value already published.
func NewSource[T comparable](initial T) *Source[T] {
	return &Source[T]{node: graph.NewSource(initial, equalOf[T]())}
}

// NewSourceDefault creates a source holding T's zero value.
func NewSourceDefault[T comparable]() *Source[T] {
	var zero T
	return NewSource(zero)
}

func equalOf[T comparable]() func(a, b any) bool {
	return func(a, b any) bool {
		at, aok := a.(T)
		bt, bok := b.(T)
		return aok && bok && at == bt
	}
}

// Set publishes v unconditionally: folly's SimpleObservable::setValue
// always mints a new version regardless of whether v equals the prior
// value, and so does this (spec §4.3). Callers who want to suppress
// no-op updates wrap the resulting Observer with MakeValueObserver.
// Set is non-blocking.
func (s *Source[T]) Set(v T) {
	m := manager.Default()
	epoch := m.NextEpoch()
	s.node.PublishSource(v, epoch)
	m.Enqueue(s.node)
}

// Observer returns a read handle for this source.
func (s *Source[T]) Observer() *Observer[T] {
	return &Observer[T]{node: s.node}
}

// toTyped converts a type-erased snapshot into the caller's T. A nil input
// (no publication yet, which cannot happen for a fully constructed node)
// degrades to a zero-value snapshot rather than panicking.
func toTyped[T any](s *snapshot.Snapshot[any]) *snapshot.Snapshot[T] {
	if s == nil {
		var zero T
		return snapshot.New[T](0, zero, 0, 0)
	}
	v, _ := s.Value().(T)
	return snapshot.New[T](s.NodeID(), v, s.Version(), s.RootVersion())
}
