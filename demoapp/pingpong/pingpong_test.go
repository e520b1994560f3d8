package pingpong

// This ping-pong implementation uses plain Go channels and arbor's
// Action instruction for the quit-aware select, the same shape
// the teacher's bare-channel pingpong demo used for its Actor.RunStep.

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/arbortask/arbor"
	"github.com/stretchr/testify/require"
)

type Msg struct {
	Increment int
}

type wiring struct {
	inbox  <-chan Msg
	outbox chan<- Msg
}

// actorBody runs rounds exchanges of Msg over w, incrementing it on the
// way through the non-ponger side, and printing its supervision path
// via arbor.ContextName the way the teacher's demo prints
// sup.ContextName.
func actorBody(ponger bool, w wiring, rounds int) arbor.Operation {
	return func(f *arbor.Frame) (any, error) {
		return f.Do(arbor.Action(func(ctx arbor.Context) (any, error) {
			for i := 0; i < rounds; i++ {
				select {
				case m := <-w.inbox:
					if ponger {
						fmt.Printf("pong %d from %s!\n", m.Increment, arbor.ContextName(ctx))
					} else {
						m.Increment++
						fmt.Printf("ping %d from %s!\n", m.Increment, arbor.ContextName(ctx))
					}
					select {
					case w.outbox <- m:
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, nil
		}))
	}
}

func TestPingPong(t *testing.T) {
	ab := make(chan Msg, 1)
	ba := make(chan Msg, 1)

	rt := arbor.NewRuntime()
	root := rt.Root(context.Background(), func(f *arbor.Frame) (any, error) {
		pv, err := f.Do(arbor.Spawn(actorBody(false, wiring{inbox: ba, outbox: ab}, 3), arbor.WithName("pinger")))
		if err != nil {
			return nil, err
		}
		gv, err := f.Do(arbor.Spawn(actorBody(true, wiring{inbox: ab, outbox: ba}, 3), arbor.WithName("ponger")))
		if err != nil {
			return nil, err
		}
		pinger, ponger := pv.(*arbor.Task), gv.(*arbor.Task)

		ab <- Msg{Increment: 0}

		if _, err := pinger.Await(f.Context()); err != nil {
			return nil, err
		}
		if _, err := ponger.Await(f.Context()); err != nil {
			return nil, err
		}
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := root.Await(ctx)
	require.NoError(t, err)
}
