package arbor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRaceReturnsFirstSettledAndAbandonsTheRest(t *testing.T) {
	f := NewFrame(context.Background())
	fast := func() (any, error) { return "fast", nil }
	slow := func(ctx Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return "slow", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	v, err := f.Do(Race(fast, slow))
	require.NoError(t, err)
	require.Equal(t, "fast", v)
}

func TestRacePropagatesFirstError(t *testing.T) {
	f := NewFrame(context.Background())
	boom := errors.New("boom")
	failing := func() (any, error) { return nil, boom }
	slow := func(ctx Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return "slow", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, err := f.Do(Race(failing, slow))
	require.ErrorIs(t, err, boom)
}

func TestAllCollectsResultsInOrder(t *testing.T) {
	f := NewFrame(context.Background())
	one := func() (any, error) { return 1, nil }
	two := func() (any, error) { return 2, nil }
	three := func() (any, error) { return 3, nil }

	v, err := f.Do(All(one, two, three))
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 3}, v)
}

func TestAllCancelsSiblingsOnFirstError(t *testing.T) {
	f := NewFrame(context.Background())
	boom := errors.New("boom")
	cancelled := make(chan struct{}, 1)

	failing := func() (any, error) { return nil, boom }
	watcher := func(ctx Context) (any, error) {
		<-ctx.Done()
		cancelled <- struct{}{}
		return nil, ctx.Err()
	}

	_, err := f.Do(All(failing, watcher))
	require.ErrorIs(t, err, boom)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("sibling operation was never cancelled after the first error")
	}
}

func TestWithTimeoutExceedsDeadline(t *testing.T) {
	f := NewFrame(context.Background())
	tooSlow := func(ctx Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, err := f.Do(WithTimeout(10*time.Millisecond, tooSlow))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeoutReturnsResultWithinDeadline(t *testing.T) {
	f := NewFrame(context.Background())
	quick := func() (any, error) { return "quick", nil }

	v, err := f.Do(WithTimeout(time.Second, quick))
	require.NoError(t, err)
	require.Equal(t, "quick", v)
}
