// Package snapshot holds the immutable, cheaply-shareable value handle that
// every node in the graph publishes on each successful evaluation.
package snapshot

// Snapshot is an immutable triple of (value, version, root-version) plus
// the id of the node that published it. A reader's copy stays valid for as
// long as the reader holds it, even if the node concurrently publishes a
// newer one — Go's garbage collector plays the role folly's manual
// refcounting plays in the C++ original, so no intrusive refcount is kept
// here; the atomic pointer swap in Box is what gives the wait-free read.
type Snapshot[T any] struct {
	nodeID      uint64
	value       T
	version     uint64
	rootVersion uint64
}

// New constructs a published snapshot. version is this node's own publish
// counter; rootVersion is the highest global update epoch among the
// dependencies that contributed to value (§4.1).
func New[T any](nodeID uint64, value T, version, rootVersion uint64) *Snapshot[T] {
	return &Snapshot[T]{nodeID: nodeID, value: value, version: version, rootVersion: rootVersion}
}

func (s *Snapshot[T]) Value() T            { return s.value }
func (s *Snapshot[T]) NodeID() uint64      { return s.nodeID }
func (s *Snapshot[T]) Version() uint64     { return s.version }
func (s *Snapshot[T]) RootVersion() uint64 { return s.rootVersion }
