package adapters

import (
	"math/rand"
	"sync"
	"time"

	"github.com/delaneyj/reactograph/observer"
)

// NewThrottledPollSource wraps traits so that each external-change
// notification schedules a refresh after base + rand(jitter) instead of
// firing immediately, coalescing a burst of near-simultaneous
// notifications into a single delayed Get. Grounded on folly's
// WithJitter.h (spec §4.6) and on the teacher's own use of math/rand
// (pkg/flimsy) for randomized scheduling.
func NewThrottledPollSource[T comparable](traits observer.PollTraits[T], base, jitter time.Duration) (*observer.PollSource[T], error) {
	throttled := traits
	throttled.Subscribe = func(onChange func()) {
		var mu sync.Mutex
		var timer *time.Timer

		traits.Subscribe(func() {
			delay := base
			if jitter > 0 {
				delay += time.Duration(rand.Int63n(int64(jitter)))
			}

			mu.Lock()
			defer mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(delay, onChange)
		})
	}

	return observer.NewPollSource(throttled)
}
