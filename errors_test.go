package arbor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationErrorUnwrapsToUnderlyingError(t *testing.T) {
	boom := errors.New("boom")
	task := &Task{name: "worker"}
	err := &OperationError{Task: task, Err: boom}

	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "worker")
}

func TestHaltErrorIsDetectedByIsHalt(t *testing.T) {
	task := &Task{name: "worker"}
	cause := errors.New("cut short")
	err := &HaltError{Task: task, Cause: cause}

	require.True(t, IsHalt(err))
	require.ErrorIs(t, err, cause)

	require.False(t, IsHalt(errors.New("unrelated")))
	require.False(t, IsHalt(nil))
}

func TestHaltErrorWithoutCauseStillHalt(t *testing.T) {
	task := &Task{name: "worker"}
	err := &HaltError{Task: task}
	require.True(t, IsHalt(err))
	require.NotContains(t, err.Error(), "<nil>")
}

func TestTeardownErrorAggregatesAndUnwraps(t *testing.T) {
	task := &Task{name: "worker"}
	e1 := errors.New("first")
	e2 := errors.New("second")
	err := &TeardownError{Task: task, Errors: []error{e1, e2}}

	require.ErrorIs(t, err, e1)
	require.ErrorIs(t, err, e2)
	require.Contains(t, err.Error(), "2 error(s)")
}

func TestProgrammerErrorMessage(t *testing.T) {
	err := newProgrammerError("bad %s", "call")
	require.Equal(t, "arbor: programmer error: bad call", err.Error())
}
