// Package graph implements the dependency-tracking DAG underlying the
// engine: nodes, their dependency/dependent links, automatic dependency
// capture, and the cycle-breaking discipline described in spec §3–§4.
package graph

import (
	"fmt"
	"sync"
	"weak"

	"github.com/delaneyj/reactograph/snapshot"
)

// State is one of the four node states from spec §3.
type State int32

const (
	StateFresh State = iota
	StateDirty
	StateEvaluating
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateDirty:
		return "dirty"
	case StateEvaluating:
		return "evaluating"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Subscription is a live callback registration on a node.
type Subscription struct {
	id uint64
	fn func(*snapshot.Snapshot[any])
}

// Node is the type-erased unit of reactivity. The generic public API in
// package observer wraps a Node and performs the type assertions back to
// the caller's T; internally every value travels as `any` so that a single
// Node implementation serves every instantiation of Source[T]/Observer[T].
type Node struct {
	id uint64

	mu            sync.Mutex
	state         State
	version       uint64
	rootVersion   uint64
	dependencies  map[uint64]*Node
	depVersions   map[uint64]uint64             // dependency id -> version last incorporated
	dependents    map[uint64]weak.Pointer[Node] // held weakly — invariant 5
	subs          map[uint64]*Subscription
	nextSubID     uint64
	everSucceeded bool
	dirtyAgain    bool
	lastErr       error

	current snapshot.Box[any]

	evaluator func() (any, error) // nil for source nodes
	equal     func(a, b any) bool
}

// NewSource creates a leaf node with an initial value already published.
// equal is bound once at construction from the caller's comparable T; a
// source's later publishes go through PublishSource, which republishes
// regardless of equal, so it does not gate a source's notifications.
func NewSource(initial any, equal func(a, b any) bool) *Node {
	n := &Node{
		id:    NextID(),
		equal: equal,
	}
	n.current.Store(snapshot.New[any](n.id, initial, 1, 0))
	n.version = 1
	n.everSucceeded = true
	return n
}

// NewDerived creates a node whose value comes from evaluator. Per spec §3's
// lifecycle rule, construction performs the first evaluation synchronously
// so Snapshot is defined from birth; a failure on this first evaluation
// propagates to the caller as an *InitialEvaluationError instead of
// constructing the node.
func NewDerived(evaluator func() (any, error), equal func(a, b any) bool) (*Node, error) {
	n := &Node{
		id:        NextID(),
		evaluator: evaluator,
		equal:     equal,
		state:     StateEvaluating,
	}
	if _, err := n.Evaluate(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.state = StateFresh
	n.mu.Unlock()
	return n, nil
}

func (n *Node) ID() uint64 { return n.id }

func (n *Node) IsSource() bool { return n.evaluator == nil }

func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Snapshot returns the currently published value, recording a dependency
// read if called while an evaluator is active on this goroutine (§4.2).
func (n *Node) Snapshot() *snapshot.Snapshot[any] {
	snap := n.current.Load()
	if rec := activeRecorder(); rec != nil {
		var v uint64
		if snap != nil {
			v = snap.Version()
		}
		rec.record(n, v)
	}
	return snap
}

// SnapshotUntracked reads the current value without registering a
// dependency, used by the manager's own bookkeeping (e.g. computing a
// dependency's current root-version) where the caller is not an evaluator.
func (n *Node) SnapshotUntracked() *snapshot.Snapshot[any] {
	return n.current.Load()
}

// Dependencies returns the node's current dependency set (strong
// references), a defensive copy safe to iterate without the node's lock.
func (n *Node) Dependencies() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, 0, len(n.dependencies))
	for _, d := range n.dependencies {
		out = append(out, d)
	}
	return out
}

// Dependents resolves the node's weak dependent back-references, dropping
// (self-cleaning) any that have been garbage collected — the mechanism
// spec §9's "Ownership cycles" note describes.
func (n *Node) Dependents() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, 0, len(n.dependents))
	for id, wp := range n.dependents {
		if d := wp.Value(); d != nil {
			out = append(out, d)
		} else {
			delete(n.dependents, id)
		}
	}
	return out
}

func (n *Node) addDependent(dep *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dependents == nil {
		n.dependents = make(map[uint64]weak.Pointer[Node])
	}
	n.dependents[dep.id] = weak.Make(dep)
}

func (n *Node) removeDependent(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.dependents, id)
}

// TryMarkDirty transitions the node toward re-evaluation and reports
// whether the caller is responsible for enqueuing it. Enqueuing is
// idempotent (spec §4.1): a node already dirty or mid-evaluation collapses
// the new trigger into the pending/in-flight one.
func (n *Node) TryMarkDirty() (shouldEnqueue bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case StateFresh, StateFailed:
		n.state = StateDirty
		return true
	case StateEvaluating:
		n.dirtyAgain = true
		return false
	default: // StateDirty
		return false
	}
}

// BeginEvaluate transitions dirty -> evaluating. Returns false if another
// worker already claimed this node (serialization invariant 6).
func (n *Node) BeginEvaluate() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateDirty {
		return false
	}
	n.state = StateEvaluating
	n.dirtyAgain = false
	return true
}

// FinishEvaluate clears the evaluating state and reports whether the node
// must be re-enqueued because a further change arrived mid-evaluation.
func (n *Node) FinishEvaluate(failed bool) (reenqueue bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dirtyAgain {
		n.dirtyAgain = false
		n.state = StateDirty
		return true
	}
	if failed {
		n.state = StateFailed
	} else {
		n.state = StateFresh
	}
	return false
}

// LastError returns the error from the most recent failed evaluation, if
// the node is currently in StateFailed.
func (n *Node) LastError() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastErr
}

// Evaluate runs the node's evaluator (source nodes have none and must not
// call this), recording dependency reads via the per-goroutine Recorder and
// publishing a new snapshot if the result differs from the prior one.
// Returns whether a new snapshot was actually published.
func (n *Node) Evaluate() (published bool, err error) {
	rec := pushRecorder(n.id)
	defer popRecorder()

	value, evalErr := n.runEvaluator()

	n.mu.Lock()
	everSucceeded := n.everSucceeded
	n.mu.Unlock()

	if evalErr != nil {
		n.mu.Lock()
		n.lastErr = evalErr
		n.mu.Unlock()
		if !everSucceeded {
			return false, &InitialEvaluationError{NodeID: n.id, Err: evalErr}
		}
		return false, &EvaluationError{NodeID: n.id, Err: evalErr}
	}

	n.updateDependencies(rec.reads)
	rootVersion := n.maxDependencyRootVersion()
	// Derived nodes suppress republication when re-evaluation produced an
	// equal value (§2 "compares the result ... if different"), which is
	// the diamond-efficiency optimization: a dependent that reads this
	// node doesn't get woken for a no-op recomputation.
	changed := n.publish(value, rootVersion, false)

	n.mu.Lock()
	n.everSucceeded = true
	n.lastErr = nil
	n.mu.Unlock()

	// updateDependencies only registers this node as a dependent of a
	// newly-read node after the evaluator has already returned. If that
	// dependency published a new version in the window between our read
	// of it (captured in depVersions above) and that registration, its
	// propagation already ran against the old dependent set and never
	// saw us — so nothing will otherwise re-enqueue this node and it
	// would settle stale, violating P1 convergence. Re-check live
	// dependency versions against what we just captured and force a
	// retry on mismatch, the same dirtyAgain path a concurrent Enqueue
	// during evaluation already uses.
	if n.NeedsReevaluation() {
		n.mu.Lock()
		n.dirtyAgain = true
		n.mu.Unlock()
	}

	return changed, nil
}

// runEvaluator invokes n.evaluator, recovering a panic into an error so
// that a bare graph.NewDerived caller gets the same guarantee package
// observer's runEvaluator gives MakeObserver callers (spec §6: "Errors
// raised from an evaluator are caught by the engine").
func (n *Node) runEvaluator() (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return n.evaluator()
}

// PublishSource is the source-node counterpart to Evaluate: it installs a
// new value directly (no evaluator to run) under the given global epoch.
// Unlike a derived node's re-evaluation, an explicit Set always republishes
// — folly's SimpleObservable::setValue always mints a new shared_ptr
// regardless of value equality; only the explicit value-equality-filter
// adapter (§4.5) suppresses propagation of a source's updates.
func (n *Node) PublishSource(value any, epoch uint64) bool {
	return n.publish(value, epoch, true)
}

func (n *Node) updateDependencies(reads []depRead) {
	n.mu.Lock()
	oldDeps := n.dependencies
	n.mu.Unlock()

	newDeps := make(map[uint64]*Node, len(reads))
	newVersions := make(map[uint64]uint64, len(reads))
	for _, r := range reads {
		newDeps[r.node.id] = r.node
		newVersions[r.node.id] = r.version
	}

	for id, d := range newDeps {
		if _, ok := oldDeps[id]; !ok {
			d.addDependent(n)
		}
	}
	for id, d := range oldDeps {
		if _, ok := newDeps[id]; !ok {
			d.removeDependent(n.id)
		}
	}

	n.mu.Lock()
	n.dependencies = newDeps
	n.depVersions = newVersions
	n.mu.Unlock()
}

// NeedsReevaluation reports whether any current dependency has published a
// snapshot newer than the one this node incorporated at its last successful
// evaluation. The manager calls this before doing real work on a dequeued
// node — spec §9's diamond efficiency note: a node with two dependencies
// that both went dirty in the same epoch should still only be re-run once
// per actual change reaching it, not once per dependency that happened to
// fire the dirty queue.
//
// This compares per-dependency versions rather than root-versions: two
// sibling dependencies can publish under the same global epoch number at
// different wall-clock times, so a dependent that already incorporated one
// of them must not mistake the shared epoch number for "nothing new" and
// skip the other's actual value change.
func (n *Node) NeedsReevaluation() bool {
	if n.IsSource() {
		return true
	}
	n.mu.Lock()
	everSucceeded := n.everSucceeded
	deps := make([]*Node, 0, len(n.dependencies))
	for _, d := range n.dependencies {
		deps = append(deps, d)
	}
	versions := n.depVersions
	n.mu.Unlock()
	if !everSucceeded {
		return true
	}
	for _, d := range deps {
		snap := d.SnapshotUntracked()
		if snap == nil {
			continue
		}
		if snap.Version() != versions[d.id] {
			return true
		}
	}
	return false
}

func (n *Node) maxDependencyRootVersion() uint64 {
	deps := n.Dependencies()
	var max uint64
	for _, d := range deps {
		if snap := d.SnapshotUntracked(); snap != nil {
			if rv := snap.RootVersion(); rv > max {
				max = rv
			}
		}
	}
	return max
}

func (n *Node) publish(value any, rootVersion uint64, force bool) bool {
	n.mu.Lock()
	prev := n.current.Load()
	first := prev == nil
	var prevValue any
	if !first {
		prevValue = prev.Value()
	}
	changed := first || force || !n.equal(prevValue, value)

	if !changed {
		n.mu.Unlock()
		return false
	}

	newVersion := n.version + 1
	n.version = newVersion
	if rootVersion > n.rootVersion {
		n.rootVersion = rootVersion
	}
	finalRoot := n.rootVersion

	// The pointer store must happen while still holding the lock that owns
	// the version counter: otherwise two concurrent publishes can bump the
	// version to v+1 and v+2 under the lock but race the subsequent
	// unlocked Store, letting the box end up holding the lower version —
	// violating spec §5 ordering guarantee 4 (published version is
	// strictly greater than any previous one).
	snap := snapshot.New[any](n.id, value, newVersion, finalRoot)
	n.current.Store(snap)

	subs := make([]*Subscription, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.fn(snap)
	}
	return true
}

// AddCallback registers fn to run on every future publication and once
// immediately with the current snapshot (§4.4). The returned id is used by
// the caller's CallbackHandle to cancel.
func (n *Node) AddCallback(fn func(*snapshot.Snapshot[any])) uint64 {
	n.mu.Lock()
	n.nextSubID++
	id := n.nextSubID
	if n.subs == nil {
		n.subs = make(map[uint64]*Subscription)
	}
	n.subs[id] = &Subscription{id: id, fn: fn}
	n.mu.Unlock()

	fn(n.current.Load())
	return id
}

// RemoveCallback cancels a subscription. Safe to call from inside the
// callback itself and safe to call twice.
func (n *Node) RemoveCallback(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// Detach removes this node from all of its dependencies' dependent sets,
// run when the node is being torn down (spec §3 lifecycle).
func (n *Node) Detach() {
	for _, d := range n.Dependencies() {
		d.removeDependent(n.id)
	}
}
