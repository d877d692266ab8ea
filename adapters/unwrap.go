package adapters

import "github.com/delaneyj/reactograph/observer"

// Unwrap flattens an observer-of-observer: outer's value is itself an
// *Observer[X] handle, and the result re-derives whenever either the
// selector (outer, switching which inner observer it points at) or the
// currently-selected inner observer's value changes (spec §2's
// "selector-unwrap" adapter, exercised by spec §8 scenario 6). No special
// casing is needed: reading outer.Get() and then inner.Get() inside one
// evaluator body records both as dependencies for this cycle, so the
// dependency-diff logic that every derived node already runs picks up the
// switch the next time outer points somewhere else.
func Unwrap[X comparable](outer *observer.Observer[*observer.Observer[X]]) (*observer.Observer[X], error) {
	return observer.MakeObserver(func() X {
		inner := outer.Get()
		return inner.Get()
	})
}
