package arbor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameGetWalksParentChain(t *testing.T) {
	root := NewFrame(context.Background())
	root.Set("k", "root-value")

	child := root.child()
	grandchild := child.child()

	v, ok := grandchild.Get("k")
	require.True(t, ok)
	require.Equal(t, "root-value", v)

	child.Set("k", "child-value")
	v, _ = grandchild.Get("k")
	require.Equal(t, "child-value", v)

	_, ok = grandchild.Get("missing")
	require.False(t, ok)
}

func TestFrameDoRejectsNilInstructionAndNilOperation(t *testing.T) {
	f := NewFrame(context.Background())

	_, err := f.Do(nil)
	require.Error(t, err)
	var pe *ProgrammerError
	require.True(t, errors.As(err, &pe))

	_, err = f.Do(func(f *Frame) Operation { return nil })
	require.Error(t, err)
	require.True(t, errors.As(err, &pe))
}

func TestFrameDestroyIsIdempotentAndDrainsChildrenInReverse(t *testing.T) {
	root := NewFrame(context.Background())
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		c := root.child()
		c.cancel = func(captured context.CancelFunc, idx int) context.CancelFunc {
			return func() {
				order = append(order, idx)
				captured()
			}
		}(c.cancel, i)
	}

	require.NoError(t, root.destroy(nil))
	require.NoError(t, root.destroy(nil)) // second call is a no-op
	require.Equal(t, []int{2, 1, 0}, order)
	require.True(t, root.Aborted())
}

func TestEvaluateClassifiesExitKinds(t *testing.T) {
	f := NewFrame(context.Background())
	exit := Evaluate(f, func(f *Frame) (any, error) { return "ok", nil })
	require.Equal(t, ExitOK, exit.Kind)
	require.Equal(t, "ok", exit.Value)

	f2 := NewFrame(context.Background())
	boom := errors.New("boom")
	exit2 := Evaluate(f2, func(f *Frame) (any, error) { return nil, boom })
	require.Equal(t, ExitErr, exit2.Kind)
	require.Equal(t, boom, exit2.Err)

	f3 := NewFrame(context.Background())
	exit3 := Evaluate(f3, func(f *Frame) (any, error) {
		f.destroy(nil)
		return nil, nil
	})
	require.Equal(t, ExitAborted, exit3.Kind)

	f4 := NewFrame(context.Background())
	crash := errors.New("crash")
	exit4 := Evaluate(f4, func(f *Frame) (any, error) {
		f.destroy(crash)
		return nil, nil
	})
	require.Equal(t, ExitCrashed, exit4.Kind)
	require.Equal(t, crash, exit4.Err)
}

func TestEvaluateClassifiesAbortedFromAncestorCancellationAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := NewFrame(ctx)
	cancel() // cancel the parent context directly; f.destroy is never called

	exit := Evaluate(f, func(f *Frame) (any, error) {
		return nil, f.Context().Err()
	})
	require.Equal(t, ExitAborted, exit.Kind)
}
