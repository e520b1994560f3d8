package arbor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Runtime is the allocator and naming authority for one kernel
// instance's task tree. DESIGN NOTES calls for replacing a
// process-wide static task counter with "an allocator that yields
// unique ids scoped to the runtime instance" -- Runtime is that
// allocator. A process may host more than one independent supervision
// tree (e.g. in tests) without their ids colliding or interfering.
type Runtime struct {
	nextID atomic.Uint64
}

// NewRuntime returns a fresh Runtime with its id counter starting at 1.
func NewRuntime() *Runtime {
	return &Runtime{}
}

func (rt *Runtime) allocID() uint64 {
	return rt.nextID.Add(1)
}

// Root creates and starts a new root Task -- one with no parent -- with
// body adapted per CONTROLLER and the given Options applied. This is
// the only way to introduce a task with no supervisor; every other task
// comes from calling Spawn on an already-running one. It mirrors the
// teacher's SuperviseRoot/NewSupervisor entry points, which are
// likewise the sole unparented entry into a supervision tree.
func (rt *Runtime) Root(ctx context.Context, body any, opts ...Option) *Task {
	o := resolveOptions(opts)
	t := rt.newTask(nil, ctx, body, o)
	t.start()
	return t
}

func (rt *Runtime) newTask(parent *Task, baseCtx context.Context, body any, o Options) *Task {
	id := rt.allocID()
	name := o.Name
	if name == "" {
		name = defaultTaskName(id)
	}
	if parent != nil {
		name = parent.resolveChildName(name)
	}
	t := &Task{
		rt:     rt,
		id:     id,
		name:   name,
		parent: parent,
		sm:     newStateMachine(),
		bus:    newEventBus(),
		opts:   o,
		body:   adapt(body),
		done:   make(chan struct{}),
	}
	t.deferred = NewDeferred[any]()
	ctx := baseCtx
	if parent != nil {
		ctx = parent.frame.Context()
	}
	t.frame = NewFrame(attachTask(ctx, t))
	t.frame.task = t
	if o.ResourceScope != nil {
		t.resourceScope = o.ResourceScope
	} else {
		t.resourceScope = t
	}
	if o.ConcurrencyLimit > 0 {
		t.childSem = semaphore.NewWeighted(int64(o.ConcurrencyLimit))
	}
	return t
}
