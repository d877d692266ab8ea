package adapters

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/delaneyj/reactograph/manager"
	"github.com/delaneyj/reactograph/observer"
	"github.com/delaneyj/reactograph/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshManager(t *testing.T) {
	t.Helper()
	manager.ResetForTesting(4)
}

func TestMakeValueObserverSuppressesEqualSets(t *testing.T) {
	freshManager(t)

	src := observer.NewSource(1)
	filtered, err := MakeValueObserver(src.Observer())
	require.NoError(t, err)

	var notifications int32
	handle := filtered.AddCallback(func(_ *snapshot.Snapshot[int]) { atomic.AddInt32(&notifications, 1) })
	defer handle.Cancel()
	assert.Equal(t, int32(1), atomic.LoadInt32(&notifications))

	src.Set(1) // equal value — Source itself always republishes...
	observer.WaitForAllUpdates()
	// ...but the filter's derived node suppresses the no-op, so the
	// filtered observer's own subscribers see nothing.
	assert.Equal(t, int32(1), atomic.LoadInt32(&notifications))

	src.Set(2)
	observer.WaitForAllUpdates()
	assert.Equal(t, int32(2), atomic.LoadInt32(&notifications))
	assert.Equal(t, 2, filtered.Get())
}

func TestAtomicTracksLatestValue(t *testing.T) {
	freshManager(t)

	src := observer.NewSource(1)
	a := NewAtomic(src.Observer())
	defer a.Close()

	assert.Equal(t, 1, a.Load())

	src.Set(5)
	observer.WaitForAllUpdates()
	assert.Equal(t, 5, a.Load())

	a.Close()
	src.Set(9)
	observer.WaitForAllUpdates()
	// closed: no longer subscribed, so Load keeps returning the last
	// value it saw before Close.
	assert.Equal(t, 5, a.Load())
}

func TestCachedReusesEntryUntilSourceAdvances(t *testing.T) {
	freshManager(t)

	src := observer.NewSource(1)
	cache := NewCached[string](src.Observer())

	first := cache.Get("worker-a")
	second := cache.Get("worker-a")
	assert.Same(t, first, second)

	src.Set(2)
	observer.WaitForAllUpdates()

	third := cache.Get("worker-a")
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, third.Value())

	cache.Invalidate("worker-a")
	fourth := cache.Get("worker-a")
	// Invalidate dropped the entry, so the refetch stores a freshly built
	// typed snapshot of the same published version instead of the old one.
	assert.NotSame(t, third, fourth)
	assert.Equal(t, third.Version(), fourth.Version())
}

func TestThrottledPollSourceCoalescesBurstsAfterDelay(t *testing.T) {
	freshManager(t)

	var current int32
	var gets int32
	var subscribed func()

	traits := observer.PollTraits[int]{
		Get: func() (int, error) {
			atomic.AddInt32(&gets, 1)
			return int(atomic.LoadInt32(&current)), nil
		},
		Subscribe: func(onChange func()) {
			subscribed = onChange
		},
		Unsubscribe: func() {},
	}

	ps, err := NewThrottledPollSource(traits, 10*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	defer ps.Close()

	atomic.StoreInt32(&current, 1)
	subscribed()
	subscribed() // burst: should coalesce into a single refresh

	time.Sleep(50 * time.Millisecond)
	observer.WaitForAllUpdates()
	assert.Equal(t, 1, ps.Observer().Get())
	// one Get at construction plus a single Get for the whole burst
	assert.Equal(t, int32(2), atomic.LoadInt32(&gets))
}

func TestUnwrapFollowsSelectorSwitch(t *testing.T) {
	freshManager(t)

	innerA := observer.NewSource(1)
	innerB := observer.NewSource(2)

	selector := observer.NewSource(innerA.Observer())

	unwrapped, err := Unwrap(selector.Observer())
	require.NoError(t, err)
	assert.Equal(t, 1, unwrapped.Get())

	innerA.Set(10)
	observer.WaitForAllUpdates()
	assert.Equal(t, 10, unwrapped.Get())

	selector.Set(innerB.Observer())
	observer.WaitForAllUpdates()
	assert.Equal(t, 2, unwrapped.Get())

	innerB.Set(20)
	observer.WaitForAllUpdates()
	assert.Equal(t, 20, unwrapped.Get())
}

type idValue struct {
	ID    int
	Value int
}

// Value filter suppresses (spec §8 scenario 3): a raw source publishes
// every Set unconditionally, so a callback on it sees every id. A value
// adapter derived from the same source sees only the Value field and
// suppresses republication when that field repeats.
func TestMakeValueObserverDualCallbackScenario(t *testing.T) {
	freshManager(t)

	src := observer.NewSource(idValue{ID: 1, Value: 1})

	var mu sync.Mutex
	var idLog, valueLog []int

	idHandle := src.Observer().AddCallback(func(s *snapshot.Snapshot[idValue]) {
		mu.Lock()
		idLog = append(idLog, s.Value().ID)
		mu.Unlock()
	})
	defer idHandle.Cancel()

	onlyValue, err := observer.MakeObserver(func() int { return src.Observer().Get().Value })
	require.NoError(t, err)
	filtered, err := MakeValueObserver(onlyValue)
	require.NoError(t, err)

	valueHandle := filtered.AddCallback(func(s *snapshot.Snapshot[int]) {
		mu.Lock()
		valueLog = append(valueLog, s.Value())
		mu.Unlock()
	})
	defer valueHandle.Cancel()

	for _, next := range []idValue{{ID: 2, Value: 1}, {ID: 3, Value: 2}, {ID: 4, Value: 2}, {ID: 5, Value: 3}} {
		src.Set(next)
		observer.WaitForAllUpdates()
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, idLog)
	assert.Equal(t, []int{1, 2, 3}, valueLog)
}
