package nnue

import (
	"errors"
	"fmt"

	"github.com/hailam/millnnue/internal/memory"
)

var (
	// ErrIncompatibleTopology means a weight source was built for a different
	// network shape, feature set or file version.
	ErrIncompatibleTopology = errors.New("nnue: incompatible topology")

	// ErrTruncatedData means a weight source ended early.
	ErrTruncatedData = errors.New("nnue: truncated data")

	// ErrInternalConsistency marks a broken contract between the evaluator
	// and the code that applies moves. It is only ever raised as a panic.
	ErrInternalConsistency = errors.New("nnue: internal consistency failure")

	// ErrAllocationFailure means no allocation strategy could hold the weights.
	ErrAllocationFailure = memory.ErrAllocationFailed

	// ErrInvalidConfig is returned for an unusable Topology or Variant.
	ErrInvalidConfig = errors.New("nnue: invalid configuration")
)

// ConsistencyError is the panic value for contract violations.
type ConsistencyError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("%v: %s: %s", ErrInternalConsistency, e.Op, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrInternalConsistency }

func (e *ConsistencyError) Unwrap() error { return e.Err }

func inconsistent(op, format string, args ...any) {
	panic(&ConsistencyError{Op: op, Detail: fmt.Sprintf(format, args...)})
}

// Guard runs fn and converts a consistency panic into an error. Any other
// panic is propagated.
func Guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*ConsistencyError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
