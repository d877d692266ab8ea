package observer

import (
	"fmt"
	"reflect"

	"github.com/delaneyj/reactograph/graph"
)

// MakeObserver creates a derived node: a node whose value comes from
// evaluator, which may itself read other Observers — those reads are
// captured automatically by the dependency recorder (spec §4.2), there is
// no explicit dependency list to pass in.
//
// The first evaluation runs synchronously before MakeObserver returns
// (spec §3's lifecycle rule: Get is defined from birth). If that first
// evaluation panics or produces a forbidden nil/empty value, construction
// fails and the error propagates synchronously to the caller (spec §7
// InitialEvaluationFailure) rather than leaving a half-built node around.
func MakeObserver[T comparable](evaluator func() T) (*Observer[T], error) {
	wrapped := func() (any, error) {
		return runEvaluator(evaluator)
	}
	node, err := graph.NewDerived(wrapped, equalOf[T]())
	if err != nil {
		return nil, err
	}
	return &Observer[T]{node: node}, nil
}

// runEvaluator invokes the caller's evaluator, recovering a panic into an
// error (spec §6: "Errors raised from an evaluator are caught by the
// engine") and rejecting a nil/empty result where one is forbidden
// (spec §7 NilResult).
func runEvaluator[T any](evaluator func() T) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()

	v := evaluator()
	if isForbiddenNil(v) {
		return nil, graph.NilResultError()
	}
	return v, nil
}

// isForbiddenNil reports whether v is the nil value of a nilable kind.
// Value types (ints, structs, strings, ...) have no such notion and are
// never rejected — only the pointer/interface/reference-ish kinds that
// folly's shared_ptr<const T> == nullptr check corresponds to.
func isForbiddenNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
