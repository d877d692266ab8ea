package manager

import (
	"testing"
	"time"

	"github.com/delaneyj/reactograph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eqInt(a, b any) bool { return a.(int) == b.(int) }

func TestEnqueuePropagatesThroughDependents(t *testing.T) {
	m := New(2)
	m.start()
	defer m.stop()

	src := graph.NewSource(1, eqInt)
	derived, err := graph.NewDerived(func() (any, error) {
		return src.Snapshot().Value().(int) * 2, nil
	}, eqInt)
	require.NoError(t, err)

	epoch := m.NextEpoch()
	src.PublishSource(2, epoch)
	m.Enqueue(src)

	m.WaitForAllUpdates()
	assert.Equal(t, 4, derived.Snapshot().Value())
}

func TestWaitForAllUpdatesBlocksUntilQueueDrains(t *testing.T) {
	m := New(1)
	m.start()
	defer m.stop()

	src := graph.NewSource(1, eqInt)
	var derived *graph.Node
	for i := 0; i < 5; i++ {
		prev := src
		if derived != nil {
			prev = derived
		}
		var err error
		derived, err = graph.NewDerived(func() (any, error) {
			time.Sleep(time.Millisecond)
			return prev.Snapshot().Value().(int) + 1, nil
		}, eqInt)
		require.NoError(t, err)
	}

	epoch := m.NextEpoch()
	src.PublishSource(10, epoch)
	m.Enqueue(src)
	m.WaitForAllUpdates()

	assert.Equal(t, 15, derived.Snapshot().Value())
}

func TestRunOnManagerThreadRunsScheduledTask(t *testing.T) {
	m := New(2)
	m.start()
	defer m.stop()

	src := graph.NewSource(1, eqInt)
	done := make(chan struct{})
	var ran bool

	m.RunOnManagerThread(func() {
		ran = true
		close(done)
	})

	epoch := m.NextEpoch()
	src.PublishSource(2, epoch)
	m.Enqueue(src)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunOnManagerThread task never ran")
	}
	assert.True(t, ran)
}

// TestMidEvaluationDirtyTriggerIsNotLost exercises the exact regression a
// prior review caught: a node that goes dirtyAgain while StateEvaluating
// must actually come back around the queue, not just have a flag set and
// then get silently dropped by Enqueue's TryMarkDirty check. The derived
// node below is driven directly (bypassing source propagation) so the
// mid-evaluation trigger lands deterministically instead of depending on
// worker-scheduling luck.
func TestMidEvaluationDirtyTriggerIsNotLost(t *testing.T) {
	m := New(1)
	m.start()
	defer m.stop()

	src := graph.NewSource(1, eqInt)
	var evalCount int
	blocking := make(chan struct{})
	proceed := make(chan struct{})

	derived, err := graph.NewDerived(func() (any, error) {
		evalCount++
		v := src.Snapshot().Value().(int)
		if evalCount == 2 {
			close(blocking)
			<-proceed
		}
		return v, nil
	}, eqInt)
	require.NoError(t, err)
	assert.Equal(t, 1, derived.Snapshot().Value())

	epoch := m.NextEpoch()
	src.PublishSource(2, epoch)
	m.Enqueue(derived) // Fresh -> Dirty; a worker will pick this up next

	<-blocking // derived is now StateEvaluating, blocked having read v=2

	// a second trigger arrives while derived is still mid-evaluation. Per
	// TestTryMarkDirtyStateMachine this must not enqueue a second time but
	// must be remembered as dirtyAgain.
	m.Enqueue(derived)

	epoch2 := m.NextEpoch()
	src.PublishSource(3, epoch2)

	close(proceed)
	m.WaitForAllUpdates()

	// without the dirtyAgain trigger surviving to an actual requeue,
	// derived would settle on the stale value 2 it read before src
	// advanced to 3.
	assert.Equal(t, 3, derived.Snapshot().Value())
	assert.Equal(t, 3, evalCount)
}

func TestDefaultIsASingleton(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
}
