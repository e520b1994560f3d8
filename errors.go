package arbor

import (
	"errors"
	"fmt"
)

// OperationError wraps any error returned from a Task's body. It is
// what propagates to a parent (unless suppressed by options) and what
// a plain (non-catchHalt) awaiter of an errored Task observes.
type OperationError struct {
	Task *Task
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("arbor: task %s errored: %v", e.Task.Path(), e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// HaltError is the synthetic error delivered to a consumer awaiting a
// halted Task. It is distinguishable from OperationError by type, and
// CatchHalt swallows it (ERROR HANDLING DESIGN: "Halt is not an error
// to the halted task's body ... but is an error to external awaiters
// unless catchHalt is used").
type HaltError struct {
	Task *Task
	// Cause is the reason passed to Halt, if any (nil for a plain
	// cooperative halt with no specific cause attached).
	Cause error
}

func (e *HaltError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("arbor: task %s halted: %v", e.Task.Path(), e.Cause)
	}
	return fmt.Sprintf("arbor: task %s halted", e.Task.Path())
}

func (e *HaltError) Unwrap() error { return e.Cause }

// IsHalt reports whether err is (or wraps) a *HaltError.
func IsHalt(err error) bool {
	var h *HaltError
	return errors.As(err, &h)
}

// TeardownError is the aggregate Frame.destroy returns when destroying
// one or more of a Frame's nested child Frames reports an error
// (COMPONENT DESIGN / Evaluator's "Child drain"). Destroying a single
// Frame never fails by itself, so none of this package's teardown paths
// produces one; a child Task that errors while its parent's halt cascade
// is tearing it down is not reported as a TeardownError either.
type TeardownError struct {
	Task   *Task
	Errors []error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("arbor: task %s: %d error(s) while tearing down children: %v", e.Task.Path(), len(e.Errors), errors.Join(e.Errors...))
}

func (e *TeardownError) Unwrap() error { return errors.Join(e.Errors...) }

// ProgrammerError marks a kernel contract violation: calling Spawn on a
// non-running Task, or yielding a value that is not an Instruction.
// Per ERROR HANDLING DESIGN, it surfaces as an OperationError on the
// offending task rather than panicking the whole process -- mirroring
// the teacher's own single-run CompareAndSwap checks, which panic
// synchronously in the caller's goroutine rather than corrupting shared
// state.
type ProgrammerError struct {
	Msg string
}

func (e *ProgrammerError) Error() string {
	return "arbor: programmer error: " + e.Msg
}

func newProgrammerError(format string, args ...any) *ProgrammerError {
	return &ProgrammerError{Msg: fmt.Sprintf(format, args...)}
}
