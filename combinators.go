package arbor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Race runs every one of ops concurrently -- each adapted via Call, each
// in its own child Frame -- and yields the value and error of whichever
// settles first, then abandons the rest by destroying their Frames. It
// is grounded on the teacher's promise.Select (select.go), which
// resolves a slice of Promise to the index and value of the first to
// settle; Race generalizes that from *Task specifically to anything
// Call can adapt, and folds "first settled" and "first errored" into
// the same race rather than treating them as separate questions.
//
// Each op gets its own Frame rather than sharing one: Frame.Do's
// contract is single-goroutine, and an op that sets a scope-local value
// would otherwise race against its siblings on the same Frame's
// unguarded values map.
func Race(ops ...any) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			if len(ops) == 0 {
				return nil, newProgrammerError("Race called with no operations")
			}

			type outcome struct {
				v   any
				err error
			}
			results := make(chan outcome, len(ops))
			frames := make([]*Frame, len(ops))
			for i, op := range ops {
				cf := f.child()
				frames[i] = cf
				instr := Call(op)
				go func(cf *Frame) {
					v, err := cf.Do(instr)
					select {
					case results <- outcome{v, err}:
					case <-cf.Context().Done():
					}
				}(cf)
			}

			defer func() {
				for _, cf := range frames {
					cf.destroy(nil)
				}
			}()

			select {
			case r := <-results:
				return r.v, r.err
			case <-f.Context().Done():
				return nil, f.Context().Err()
			}
		}
	}
}

// All runs every one of ops concurrently to completion, each in its own
// child Frame derived from a shared errgroup context, and yields their
// values as a []any in the original order, or the first error any of
// them produces -- wired to golang.org/x/sync/errgroup so that one
// failing operation promptly cancels the Frames the others are running
// in, the same early-exit behavior errgroup.WithContext gives any of
// its callers. An operation already past its own cancellation check
// when the first error lands keeps running to completion regardless --
// the same best-effort-abandon caveat Deferred-bodied Tasks carry.
//
// Each op gets its own Frame rather than sharing one, for the same
// single-goroutine-Frame reason Race does.
func All(ops ...any) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			if len(ops) == 0 {
				return []any{}, nil
			}

			g, gctx := errgroup.WithContext(f.Context())
			frames := make([]*Frame, len(ops))
			results := make([]any, len(ops))
			for i, op := range ops {
				i, instr := i, Call(op)
				cctx, cancel := context.WithCancel(gctx)
				cf := &Frame{parent: f, task: f.task, ctx: cctx, cancel: cancel}
				f.children = append(f.children, cf)
				frames[i] = cf
				g.Go(func() error {
					v, err := cf.Do(instr)
					if err != nil {
						return err
					}
					results[i] = v
					return nil
				})
			}

			err := g.Wait()
			for _, cf := range frames {
				cf.destroy(nil)
			}
			if err != nil {
				return nil, err
			}
			return results, nil
		}
	}
}

// WithTimeout runs op in a child Frame whose cancellation fires no
// later than d after WithTimeout itself is invoked, surfacing
// context.DeadlineExceeded (wrapped the same way any other cancellation
// is) if op has not settled by then.
func WithTimeout(d time.Duration, op any) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			tctx, cancel := context.WithTimeout(f.Context(), d)
			cf := &Frame{parent: f, task: f.task, ctx: tctx, cancel: cancel}
			f.children = append(f.children, cf)

			v, err := cf.Do(Call(op))
			cf.destroy(nil)
			return v, err
		}
	}
}
