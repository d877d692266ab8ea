// Package adapters holds the thin, out-of-core-scope layers spec §1 lists
// as "specialized observer adapters": a value-equality filter, an
// atomic-scalar cache, a caller-keyed cache standing in for folly's
// thread-local observer, and a jittered poll-source throttle.
package adapters

import "github.com/delaneyj/reactograph/observer"

// MakeValueObserver wraps src so that it republishes only when the new
// value differs from the prior one (spec §4.5). A plain derived node
// already suppresses no-op republication on re-evaluation (see
// observer.MakeObserver), so this adapter is literally that: a derived
// node whose body is "read src" — it exists as a named, documented
// construction because callers shouldn't have to know that detail to get
// equality filtering, and because Source.Set itself deliberately does not
// filter (spec §4.3) — only this adapter restores that behavior.
func MakeValueObserver[T comparable](src *observer.Observer[T]) (*observer.Observer[T], error) {
	return observer.MakeObserver(func() T {
		return src.Get()
	})
}
