package arbor

import (
	"context"
	"sync"
)

// Context is an alias permitting author-facing code to say
// arbor.Context in a Resource or Action signature instead of reaching
// for "context".Context directly.
type Context = context.Context

// ctxKey is the one key under which a Frame's owning Task is attached
// to its context.Context. A Task needs both itself and its already-
// computed Path reachable from ctx (ContextTask/ContextName), and
// a single struct under one key gets both in the one allocation
// context.WithValue otherwise charges per key.
type ctxKey = struct{}

type ctxAttachments struct {
	task     *Task
	taskPath string
}

func readContext(ctx Context) ctxAttachments {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return ctxAttachments{taskPath: "[unmanaged]"}
	}
	return v.(ctxAttachments)
}

// attachTask derives a child of ctx carrying t's identity, so that any
// Instruction running on t's Frame (or a Frame nested under it) can
// recover t via ContextTask without threading it through every call.
func attachTask(ctx Context, t *Task) Context {
	return context.WithValue(ctx, ctxKey{}, ctxAttachments{task: t, taskPath: t.Path()})
}

// ContextTask returns the Task nearest to ctx in the supervision tree,
// or nil if ctx was never derived from one of this kernel's Frames.
func ContextTask(ctx Context) *Task {
	return readContext(ctx).task
}

// ContextName is a shortcut for ContextTask(ctx).Path(), or a
// placeholder string if no Task is attached to ctx.
func ContextName(ctx Context) string {
	return readContext(ctx).taskPath
}

// Operation is a suspended computation: given the Frame it runs in, it
// produces a value or an error. Task bodies, and every sub-operation an
// Instruction expands to, share this one shape.
type Operation func(f *Frame) (any, error)

// Instruction is an atomic yielded request, first-class and
// composable: invoked with the current Frame, it returns the Operation
// that actually performs the work (DATA MODEL: "An instruction is
// itself a function (frame) -> Operation<Result>"). DESIGN NOTES'
// closed tagged-variant set (Spawn, Ensure, Suspend, Action, Resource,
// Yield) is implemented as the handful of Instruction-returning
// constructors in instructions.go; the type itself stays an open
// function type so user-level collaborators (channels, timers, HTTP
// clients -- all out of THE CORE's scope) can build their own sugar
// from these without the kernel needing to know about it.
type Instruction func(f *Frame) Operation

// Frame is the evaluator context that drives one computation: a Task's
// body, or a Resource's dedicated init scope (COMPONENT DESIGN / 4.5).
// Because every Task is its own goroutine, Frame does not need the
// thunk stack the spec's single-threaded host requires to interleave
// suspended generators -- the Go scheduler already provides that
// interleaving. Frame's remaining job is narrower: hold the scope-local
// value chain, track nested init-frames for teardown, and expose one
// cancellation point (Context) that every suspending Instruction must
// select against to honor a halt promptly.
type Frame struct {
	parent *Frame
	task   *Task

	ctx    context.Context
	cancel context.CancelFunc

	values map[any]any

	// mu guards children: ordinarily a Frame is only ever touched from
	// its own Task's goroutine, but UseResource's dedicated init-frame
	// can be rooted at a *different* Task's Frame (WithResourceScope),
	// so a scope's own goroutine and whoever is calling UseResource
	// against it can call child() concurrently.
	mu       sync.Mutex
	children []*Frame
	aborted  bool
	crash    error
}

// NewFrame returns a root Frame deriving its cancellation from ctx.
func NewFrame(ctx context.Context) *Frame {
	cctx, cancel := context.WithCancel(ctx)
	return &Frame{ctx: cctx, cancel: cancel}
}

// child returns a new Frame nested under f, inheriting f's scope-local
// value chain and f's owning task, and tracked so that destroying f
// also destroys it. Used by UseResource for a Resource's dedicated init
// scope (COMPONENT DESIGN / 4.5: "init runs in a dedicated frame").
func (f *Frame) child() *Frame {
	cctx, cancel := context.WithCancel(f.ctx)
	cf := &Frame{parent: f, task: f.task, ctx: cctx, cancel: cancel}
	f.mu.Lock()
	f.children = append(f.children, cf)
	f.mu.Unlock()
	return cf
}

// Context returns the Frame's cancellation context. Any Instruction
// that itself blocks on an external event must select against
// Context().Done() to honor a halt promptly -- the frame-local
// stand-in for DATA MODEL's single, replaced-not-chained `interrupt`
// hook. Because each Task already has its own goroutine, "installing
// the interrupt" collapses to selecting against this one context at
// the one place the computation is actually blocked.
func (f *Frame) Context() context.Context {
	return f.ctx
}

// Task returns the Task this Frame is ultimately driving the body of.
func (f *Frame) Task() *Task {
	return f.task
}

// Get looks up a scope-local value, walking up the prototype chain to
// parent frames if not found locally (DATA MODEL: "a prototype-chained
// dictionary for scope-local values inherited from parent frame").
func (f *Frame) Get(key any) (any, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.values == nil {
			continue
		}
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds a scope-local value visible to this frame and its children.
func (f *Frame) Set(key, value any) {
	if f.values == nil {
		f.values = make(map[any]any)
	}
	f.values[key] = value
}

// Aborted reports whether this frame's teardown has begun, either
// because destroy was called on it directly or an ancestor frame's
// cancellation has propagated to it.
func (f *Frame) Aborted() bool {
	return f.aborted || f.ctx.Err() != nil
}

// Do invokes instr against this Frame and runs the Operation it
// returns in tail position -- COMPONENT DESIGN / Evaluator's
// "evaluation step": "the yielded instruction is invoked with the
// current frame as argument; its returned sub-operation is run
// inline". A body that does this from outside its own Frame's
// goroutine is a ProgrammerError in spirit, but Frame has no way to
// detect that; it is a single-goroutine contract like every other part
// of this kernel.
func (f *Frame) Do(instr Instruction) (any, error) {
	if instr == nil {
		return nil, newProgrammerError("yielded a nil Instruction")
	}
	op := instr(f)
	if op == nil {
		return nil, newProgrammerError("instruction %T produced a nil Operation", instr)
	}
	return op(f)
}

// destroy tears f down: marks it aborted (with an optional crash
// reason), cancels its context, and recursively destroys every child
// frame in reverse insertion order, aggregating teardown failures
// (COMPONENT DESIGN / Evaluator's "Child drain", applied to nested
// init-frames -- the supervision-level child *Task* drain is a
// separate, higher-level concern handled by Task.resume/haltChildren).
// destroy is idempotent.
func (f *Frame) destroy(reason error) error {
	if f.aborted {
		return nil
	}
	f.aborted = true
	f.crash = reason
	f.cancel()

	f.mu.Lock()
	children := f.children
	f.children = nil
	f.mu.Unlock()

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].destroy(reason); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &TeardownError{Task: f.task, Errors: errs}
	}
	return nil
}

// ExitKind classifies how a Frame's top-level Operation finally exited
// (COMPONENT DESIGN / Evaluator's "Exit classification").
type ExitKind uint8

const (
	ExitOK ExitKind = iota
	ExitErr
	ExitAborted
	ExitCrashed
)

// Exit is the result of Evaluate: normal completion, body failure,
// cancellation without a reason, or cancellation with one.
type Exit struct {
	Kind  ExitKind
	Value any
	Err   error
}

// Evaluate drives op to completion on Frame f and classifies the
// result. A body is free to keep yielding Instructions after f has
// been destroyed -- that is how it runs its own try/finally-equivalent
// cleanup -- but Evaluate still reports ExitAborted/ExitCrashed once op
// finally returns, regardless of what value or error op itself
// produced: a destroyed frame's outcome is defined by *why* it was
// destroyed, not by whatever the body happened to return on the way
// out.
func Evaluate(f *Frame, op Operation) Exit {
	v, err := op(f)

	// Aborted() also catches cancellation that arrived only by
	// propagating down from an ancestor Frame's context -- f.destroy
	// was never called on f itself, so f.aborted alone would miss it.
	switch {
	case f.aborted && f.crash != nil:
		return Exit{Kind: ExitCrashed, Err: f.crash}
	case f.Aborted():
		return Exit{Kind: ExitAborted}
	case err != nil:
		return Exit{Kind: ExitErr, Err: err}
	default:
		return Exit{Kind: ExitOK, Value: v}
	}
}
