// Package manager implements the process-wide scheduler described in
// spec §4.1: the dirty queue, the worker pool, the update epoch, and the
// quiescence barrier. A single Manager instance is shared by every
// Source/Observer created through package observer; it lazy-initializes
// on first use (spec §9 "Singleton manager").
package manager

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/delaneyj/reactograph/graph"
)

// Manager owns the dirty queue and worker pool. Exactly one instance is
// meant to back a process; see Default.
type Manager struct {
	mu         sync.Mutex
	workCond   *sync.Cond
	quietCond  *sync.Cond
	queue      []*graph.Node
	evaluating map[uint64]*graph.Node
	inflight   int
	stopped    bool

	// barrier lets RunOnManagerThread tasks run with a guarantee that no
	// node evaluation is concurrently in flight: evaluations take the
	// read lock, a scheduled task takes the write lock.
	barrier sync.RWMutex

	epoch atomic.Uint64

	workerCount int
	wg          sync.WaitGroup
}

// New constructs a Manager with workerCount worker goroutines. Most
// callers should use Default instead; New exists for tests that want an
// isolated instance.
func New(workerCount int) *Manager {
	if workerCount < 1 {
		workerCount = 1
	}
	m := &Manager{
		evaluating:  make(map[uint64]*graph.Node),
		workerCount: workerCount,
	}
	m.workCond = sync.NewCond(&m.mu)
	m.quietCond = sync.NewCond(&m.mu)
	return m
}

var (
	instMu sync.Mutex
	inst   *Manager
)

// Default returns the process-wide Manager, starting its worker pool on
// first call.
func Default() *Manager {
	instMu.Lock()
	defer instMu.Unlock()
	if inst == nil {
		inst = New(runtime.GOMAXPROCS(0))
		inst.start()
	}
	return inst
}

// ResetForTesting replaces the process-wide Manager with a fresh instance
// sized to workerCount, stopping the previous one's workers first. This is
// the only sanctioned way to change the pool size or get a clean dirty
// queue between tests — spec §9 allows "testing hooks" only.
func ResetForTesting(workerCount int) *Manager {
	instMu.Lock()
	defer instMu.Unlock()
	if inst != nil {
		inst.stop()
	}
	inst = New(workerCount)
	inst.start()
	return inst
}

func (m *Manager) start() {
	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker()
	}
}

func (m *Manager) stop() {
	m.mu.Lock()
	m.stopped = true
	m.workCond.Broadcast()
	m.mu.Unlock()
	m.wg.Wait()
}

// NextEpoch increments and returns the global update epoch. Every
// top-level source Set call consumes one epoch value (spec §4.1).
func (m *Manager) NextEpoch() uint64 {
	return m.epoch.Add(1)
}

// Enqueue marks node dirty and, if it wasn't already pending or mid
// evaluation, appends it to the dirty queue. Enqueuing is idempotent: a
// node enqueued twice before being popped is evaluated once, using
// whatever is current at pop time (spec §4.1).
func (m *Manager) Enqueue(node *graph.Node) {
	if !node.TryMarkDirty() {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, node)
	m.inflight++
	m.workCond.Signal()
	m.mu.Unlock()
}

// requeue appends node directly to the dirty queue without going through
// TryMarkDirty. It exists for the one caller (process's self-reenqueue
// below) where the node is already known to be in StateDirty — Enqueue's
// TryMarkDirty call would see that same StateDirty and silently refuse to
// queue it again, since from TryMarkDirty's ordinary caller's perspective
// StateDirty means "already pending, nothing to do". Here it means the
// opposite: FinishEvaluate just put it there specifically so it gets
// re-run, and dropping it would leave the node stuck dirty forever.
func (m *Manager) requeue(node *graph.Node) {
	m.mu.Lock()
	m.queue = append(m.queue, node)
	m.inflight++
	m.workCond.Signal()
	m.mu.Unlock()
}

func (m *Manager) dequeue() *graph.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 {
		if m.stopped {
			return nil
		}
		m.workCond.Wait()
	}
	node := m.queue[0]
	m.queue = m.queue[1:]
	return node
}

func (m *Manager) runWorker() {
	defer m.wg.Done()
	for {
		node := m.dequeue()
		if node == nil {
			return
		}
		m.process(node)
	}
}

func (m *Manager) process(node *graph.Node) {
	if !node.BeginEvaluate() {
		m.finishOne()
		return
	}

	m.mu.Lock()
	m.evaluating[node.ID()] = node
	m.mu.Unlock()

	m.barrier.RLock()
	var toEnqueue []*graph.Node
	failed := false

	if node.IsSource() {
		// A source has no evaluator; being popped here only means
		// "propagate" — Set already installed the new snapshot.
		toEnqueue = node.Dependents()
	} else if !node.NeedsReevaluation() {
		// Diamond efficiency (spec §9): none of this node's
		// dependencies actually advanced past what it last saw, so
		// this dequeue was a redundant trigger from a sibling branch
		// of the same epoch.
	} else {
		changed, err := node.Evaluate()
		if err != nil {
			failed = true
			if evalErr, ok := err.(*graph.EvaluationError); ok {
				log.Printf("reactograph: %v", evalErr)
			}
			// InitialEvaluationError cannot surface here: a derived
			// node never reaches the queue until its constructor's
			// own synchronous first evaluation has already succeeded.
		} else if changed {
			toEnqueue = node.Dependents()
		}
	}
	m.barrier.RUnlock()

	reenqueueSelf := node.FinishEvaluate(failed)

	m.mu.Lock()
	delete(m.evaluating, node.ID())
	m.mu.Unlock()

	if reenqueueSelf {
		m.requeue(node)
	}
	for _, dep := range toEnqueue {
		m.Enqueue(dep)
	}

	m.finishOne()
}

func (m *Manager) finishOne() {
	m.mu.Lock()
	m.inflight--
	if m.inflight == 0 && len(m.queue) == 0 {
		m.quietCond.Broadcast()
	}
	m.mu.Unlock()
}

// WaitForAllUpdates blocks until the dirty queue is empty and no worker is
// evaluating. Calling it from inside an evaluator would deadlock, so it
// panics with a *graph.QuiescenceError instead (spec §7
// QuiescenceFromEvaluator).
func (m *Manager) WaitForAllUpdates() {
	if graph.InsideEvaluation() {
		panic(&graph.QuiescenceError{})
	}
	m.mu.Lock()
	for m.inflight > 0 || len(m.queue) > 0 {
		m.quietCond.Wait()
	}
	m.mu.Unlock()
}

// RunOnManagerThread schedules fn to run once the dirty queue has drained,
// with a guarantee that no node evaluation runs concurrently with it. Used
// for destructor-style cleanup that needs to read other nodes safely
// (spec §4.1).
func (m *Manager) RunOnManagerThread(fn func()) {
	go func() {
		m.WaitForAllUpdates()
		m.barrier.Lock()
		defer m.barrier.Unlock()
		fn()
	}()
}

// CurrentlyEvaluatingIDs returns the ids of nodes currently being
// evaluated by some worker. spec §4.1 describes a single
// Option<node-id> because the original is single-threaded; this module's
// worker pool generalizes that to a set.
func (m *Manager) CurrentlyEvaluatingIDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.evaluating))
	for id := range m.evaluating {
		ids = append(ids, id)
	}
	return ids
}
