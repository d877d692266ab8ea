package graph

import "sync"

// Recorder accumulates the set of nodes read during one evaluation.
// Node.Evaluate pushes a fresh Recorder onto the calling goroutine's stack
// before invoking the evaluator and pops it on return; any node whose
// Snapshot is called while a Recorder is active on that goroutine is
// appended once, together with the version it returned.
// depRead is one dependency read: the node that was read, and the version
// of the snapshot it returned at the moment it was read. Recording the
// version (not just the node) lets the manager's diamond-efficiency check
// (graph.Node.NeedsReevaluation) tell "this dependency published again
// since I last looked" apart from "this dependency shares an epoch number
// with one I already incorporated" — two siblings in a diamond can finish
// under the same global epoch at different times.
type depRead struct {
	node    *Node
	version uint64
}

type Recorder struct {
	nodeID uint64 // id of the node currently being evaluated on this goroutine
	reads  []depRead
	seen   map[uint64]struct{}
}

func newRecorder(nodeID uint64) *Recorder {
	return &Recorder{nodeID: nodeID, seen: make(map[uint64]struct{})}
}

func (r *Recorder) record(n *Node, version uint64) {
	if _, ok := r.seen[n.id]; ok {
		return
	}
	r.seen[n.id] = struct{}{}
	r.reads = append(r.reads, depRead{node: n, version: version})
}

var (
	recorderMu    sync.RWMutex
	recorderStack = make(map[uint64][]*Recorder) // goroutine id -> push/pop stack
)

// pushRecorder installs a new Recorder for the calling goroutine, allowing
// nested construction (§4.2): a node built while another node's evaluator
// is running gets its own Recorder without disturbing the outer one.
func pushRecorder(nodeID uint64) *Recorder {
	gid := goroutineID()
	r := newRecorder(nodeID)

	recorderMu.Lock()
	recorderStack[gid] = append(recorderStack[gid], r)
	recorderMu.Unlock()

	return r
}

func popRecorder() {
	gid := goroutineID()

	recorderMu.Lock()
	stack := recorderStack[gid]
	if len(stack) > 0 {
		stack = stack[:len(stack)-1]
	}
	if len(stack) == 0 {
		delete(recorderStack, gid)
	} else {
		recorderStack[gid] = stack
	}
	recorderMu.Unlock()
}

// activeRecorder returns the Recorder on top of the calling goroutine's
// stack, or nil if no evaluation is in progress on this goroutine.
func activeRecorder() *Recorder {
	gid := goroutineID()

	recorderMu.RLock()
	defer recorderMu.RUnlock()

	stack := recorderStack[gid]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// InsideEvaluation reports whether the calling goroutine is currently
// running inside any evaluator. Used to reject WaitForAllUpdates calls
// made from an evaluator (§4.1, QuiescenceFromEvaluator in §7).
func InsideEvaluation() bool {
	return activeRecorder() != nil
}
