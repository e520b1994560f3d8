package arbor

// Body is the set of shapes Spawn/Root accept as a task body. It is
// documentation-only (an empty interface alias); adapt is the real
// classifier. COMPONENT DESIGN / 4.4 names three Controller kinds --
// iterator, promise-like, and plain-value bodies -- and Arbor maps
// each onto the Go shape that plays the same role once Task bodies are
// goroutines rather than single-threaded generators:
//
//   - Operation / func(*Frame) (any, error): the iterator body. It
//     drives the Frame directly via f.Do, exactly like a generator
//     stepping through yielded instructions, except it does so with
//     ordinary blocking Go calls instead of a resumed coroutine.
//   - func() (any, error), func(*Frame) any, func() any: narrower
//     convenience shapes for bodies that don't need the Frame, or
//     don't fail, or both.
//   - *Deferred[any]: the promise-like body. Settling is the single
//     Instruction; halting the task before it settles makes the wait
//     best-effort abandon it (the Deferred itself is not told to stop
//     producing -- matching DESIGN NOTES' "best-effort cancel ...
//     document as a latency caveat, not a correctness hole").
//   - anything else: a plain value body, resolved immediately.
type Body any

// adapt classifies body per the rules above and returns the Operation
// the Controller will hand to Evaluate.
func adapt(body any) Operation {
	switch b := body.(type) {
	case Operation:
		return b
	case func(*Frame) (any, error):
		return Operation(b)
	case func() (any, error):
		return func(f *Frame) (any, error) { return b() }
	case func(*Frame) any:
		return func(f *Frame) (any, error) { return b(f), nil }
	case func() any:
		return func(f *Frame) (any, error) { return b(), nil }
	case *Deferred[any]:
		return adaptDeferred(b)
	default:
		return func(f *Frame) (any, error) { return b, nil }
	}
}

// adaptDeferred turns a promise-like body into the single Action
// instruction COMPONENT DESIGN / 4.4 describes: "treats the
// asynchronous value as a single action instruction; settle ->
// resolve/reject the task; halt -> drop the pending value (best
// effort)".
func adaptDeferred(d *Deferred[any]) Operation {
	return func(f *Frame) (any, error) {
		return f.Do(Action(func(ctx Context) (any, error) {
			select {
			case <-d.Done():
				s, _ := d.Peek()
				return s.Value, s.Err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}))
	}
}

// Call adapts a foreign asynchronous value into an Instruction -- the
// uniform integration point EXTERNAL INTERFACES names: "call(x) adapts
// a promise, a plain value, a function producing any of these, or an
// operation, into an Instruction". It recurses through a func() any
// thunk, so that `Call(func() any { return d })` with d a *Deferred[any]
// works without a caller having to unwrap it by hand; a func(Context) any
// result is used as a plain value, not adapted again. Per Testable Property
// 8, when x resolves to an Operation -- whether given directly or
// produced by a thunk -- Call runs it in a child scope of whichever
// Frame the Instruction is eventually invoked against, rather than
// handing it back to run in the caller's own Frame unchanged.
func Call(x any) Instruction {
	return func(pf *Frame) Operation {
		switch v := x.(type) {
		case Instruction:
			return v(pf)
		case Operation:
			return func(f *Frame) (any, error) {
				return v(pf.child())
			}
		case *Deferred[any]:
			return adaptDeferred(v)
		case func() any:
			return Call(v())(pf)
		case func(Context) any:
			return func(f *Frame) (any, error) { return v(f.Context()), nil }
		case func() (any, error):
			return func(f *Frame) (any, error) { return v() }
		case func(Context) (any, error):
			return func(f *Frame) (any, error) { return v(f.Context()) }
		default:
			return func(f *Frame) (any, error) { return v, nil }
		}
	}
}
