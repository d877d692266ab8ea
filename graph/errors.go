package graph

import (
	"errors"
	"fmt"
)

// EvaluationError wraps an evaluator panic or returned error for a node
// that already has a prior successful snapshot. The node keeps that prior
// snapshot; dependents are not enqueued (§7 EvaluationFailure).
type EvaluationError struct {
	NodeID uint64
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("node %d: evaluation failed: %v", e.NodeID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// InitialEvaluationError wraps a failure on a derived node's first
// evaluation. Construction fails and this propagates synchronously to the
// caller of MakeObserver (§7 InitialEvaluationFailure).
type InitialEvaluationError struct {
	NodeID uint64
	Err    error
}

func (e *InitialEvaluationError) Error() string {
	return fmt.Sprintf("node %d: initial evaluation failed: %v", e.NodeID, e.Err)
}

func (e *InitialEvaluationError) Unwrap() error { return e.Err }

// QuiescenceError is raised when WaitForAllUpdates is called from inside an
// evaluator (§7 QuiescenceFromEvaluator) — doing so would deadlock, since
// the very evaluation trying to wait is itself blocking the queue it's
// waiting to drain.
type QuiescenceError struct{}

func (*QuiescenceError) Error() string {
	return "WaitForAllUpdates called from inside an evaluator"
}

// errNilResult is returned by an evaluator wrapper when the user's
// evaluator produced a nil/empty value where the engine requires one
// (§7 NilResult). It is treated the same as an evaluation error, except on
// a node's first evaluation where it becomes an InitialEvaluationError.
var errNilResult = fmt.Errorf("evaluator returned a nil/empty value")

// ErrNilResult reports whether err is (or wraps) the engine's nil-result
// logic error.
func ErrNilResult(err error) bool {
	return errors.Is(err, errNilResult)
}

// NilResultError is the sentinel error an evaluator wrapper should return
// to signal §7's NilResult condition.
func NilResultError() error { return errNilResult }
