package observer

import (
	"log"
	"sync"

	"github.com/delaneyj/reactograph/graph"
	"github.com/delaneyj/reactograph/manager"
)

// PollTraits is the {get, subscribe, unsubscribe} triple spec §4.3
// parameterizes the poll-with-callback source over (folly's
// ObserverCreator<T, Traits>). Get performs a synchronous fetch and may
// block; Subscribe registers an external-change notification callback;
// Unsubscribe tears that registration down.
type PollTraits[T any] struct {
	Get         func() (T, error)
	Subscribe   func(onChange func())
	Unsubscribe func()
}

// PollSource is a leaf node whose value comes from an external,
// subscription-driven data source rather than an explicit Set call. Go has
// no destructors, so unlike the original the "join any in-flight refresh"
// obligation is discharged by an explicit Close rather than implicitly at
// end of scope — callers are expected to Close it the way they'd Close any
// other io.Closer-shaped resource.
type PollSource[T comparable] struct {
	node   *graph.Node
	traits PollTraits[T]

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewPollSource constructs a poll source. Construction blocks until the
// subscription is established and the first Get has completed, so the
// returned source's Observer has a value from birth (spec §4.3).
func NewPollSource[T comparable](traits PollTraits[T]) (*PollSource[T], error) {
	v, err := traits.Get()
	if err != nil {
		return nil, err
	}

	ps := &PollSource[T]{
		node:   graph.NewSource(v, equalOf[T]()),
		traits: traits,
	}

	traits.Subscribe(func() {
		ps.triggerRefresh()
	})

	return ps, nil
}

// triggerRefresh runs Get off the manager's worker pool — a poll source's
// Get may block on network I/O, and the dirty queue's workers exist to run
// the engine's own pure evaluators, not arbitrary blocking calls — then
// publishes the result and enqueues it for propagation exactly like a
// Source.Set would.
func (ps *PollSource[T]) triggerRefresh() {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	ps.wg.Add(1)
	ps.mu.Unlock()

	go func() {
		defer ps.wg.Done()

		v, err := ps.traits.Get()
		if err != nil {
			log.Printf("reactograph: poll source refresh failed: %v", err)
			return
		}

		m := manager.Default()
		epoch := m.NextEpoch()
		ps.node.PublishSource(v, epoch)
		m.Enqueue(ps.node)
	}()
}

// Observer returns a read handle for this poll source.
func (ps *PollSource[T]) Observer() *Observer[T] {
	return &Observer[T]{node: ps.node}
}

// Close unsubscribes and blocks until any in-flight Get has returned
// (spec §4.3: destruction must join a refresh already running when it
// starts, and must guarantee no further Get starts afterward).
func (ps *PollSource[T]) Close() {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	ps.closed = true
	ps.mu.Unlock()

	ps.traits.Unsubscribe()
	ps.wg.Wait()
}
