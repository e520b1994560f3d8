package arbor

// DESIGN NOTES' closed tagged-variant set -- Spawn, Ensure, Suspend,
// Action, Resource, Yield -- is implemented here as Instruction
// constructors. Each one captures its arguments and returns the
// Instruction a body yields via Frame.Do; Do invokes the constructor's
// returned Instruction against the live Frame and runs the Operation it
// produces in tail position.

// Action wraps a plain blocking Go function as the single-step
// Instruction COMPONENT DESIGN / 4.4 calls the promise-like Controller's
// one instruction: run fn to completion, honoring ctx.Done() for
// cancellation if fn chooses to select on it. Action is also the escape
// hatch ordinary bodies use to do I/O without hand-rolling an Operation.
func Action(fn func(ctx Context) (any, error)) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			return fn(f.Context())
		}
	}
}

// Yield hands back a plain value with no side effect -- the degenerate
// Instruction a body uses when it wants to produce a value without
// blocking on anything.
func Yield(v any) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) { return v, nil }
	}
}

// Suspend blocks until ctx.Done() fires, surfacing ctx.Err(). It is the
// Instruction a body yields when it has nothing left to do but wait to
// be halted -- e.g. a server loop's idle state between requests.
func Suspend() Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			<-f.Context().Done()
			return nil, f.Context().Err()
		}
	}
}

// Spawn starts a child Task under the Frame's owning Task and yields the
// new *Task immediately -- it does not wait for the child to finish.
// SUPERVISION's link step (recording the child, wiring its hooks to the
// parent) happens before Spawn's Operation returns, so a halt racing
// with a just-yielded Spawn can never miss the child.
func Spawn(body any, opts ...Option) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			t := f.Task()
			if t == nil {
				return nil, newProgrammerError("Spawn used outside a Task frame")
			}
			child, err := t.Spawn(body, opts...)
			if err != nil {
				return nil, err
			}
			return child, nil
		}
	}
}

// Ensure registers fn as a hook to run once the Frame's owning Task
// reaches a terminal state, regardless of outcome -- SUPERVISION's
// ensure hooks, run after trappers per DESIGN NOTES' resolved ordering.
func Ensure(fn func()) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			t := f.Task()
			if t == nil {
				return nil, newProgrammerError("Ensure used outside a Task frame")
			}
			t.Ensure(fn)
			return nil, nil
		}
	}
}

// Resource is the contract a caller satisfies to use UseResource:
// Init runs in a dedicated child Frame rooted at scope's own Frame and
// returns the Operation that produces the resource's value; cleanup is
// whatever Init itself registers via scope.Ensure, tied to scope's
// lifetime rather than the calling Frame's (COMPONENT DESIGN / 4.5). An
// Init that needs to start ongoing work alongside the resource calls
// scope.Spawn directly -- SPEC_FULL §3.4/§6's "scope.spawn" -- since
// Init runs nested under scope's Frame rather than the caller's.
type Resource interface {
	Init(scope *Task) Operation
}

// UseResource runs r.Init in a dedicated child Frame nested under
// scope's own root Frame, not the calling Frame -- so that Init's
// Operation, and anything it spawns via Spawn/scope.Spawn, is scoped to
// scope rather than to whatever Task happened to call UseResource. This
// matters whenever WithResourceScope names a scope other than the
// caller's own Task: destroying scope's Frame (and thus halting scope)
// tears the init-frame down too, regardless of who invoked UseResource.
func UseResource(r Resource) Instruction {
	return func(f *Frame) Operation {
		return func(f *Frame) (any, error) {
			t := f.Task()
			if t == nil {
				return nil, newProgrammerError("UseResource used outside a Task frame")
			}
			scope := t.resourceScope
			cf := scope.frame.child()
			return r.Init(scope)(cf)
		}
	}
}
