package arbor

import (
	"errors"
	"fmt"
	"math/rand"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is one node in a supervision tree: a body running on its own
// goroutine, a position in the Task State Machine, and the bookkeeping
// needed to link it to its parent and children. Unlike the teacher's
// boundTask/supervisor split -- a Task submitted to a long-lived
// Supervisor value -- Arbor has no separate supervisor type: every Task
// is itself the supervisor of whatever it Spawns, exactly as SYSTEM
// OVERVIEW's "a task is a node; every node is also its own supervisor
// of its children" collapses the two roles.
type Task struct {
	rt   *Runtime
	id   uint64
	name string

	parent *Task

	mu       sync.Mutex
	sm       *stateMachine
	children []*Task
	reserved map[string]struct{}

	trappers []func(error) bool
	ensures  []func()

	result any
	err    error

	haltOnce  sync.Once
	haltCause error
	// pendingErr holds a child's error once it has been folded into this
	// Task's own outcome via onChildFinished, so run can tell a forced
	// error-cascade halt apart from an ordinary cooperative one.
	pendingErr error

	opts          Options
	body          Operation
	frame         *Frame
	resourceScope *Task
	childSem      *semaphore.Weighted

	bus      *eventBus
	deferred *Deferred[any]
	done     chan struct{}
}

// start launches the Task's controller loop on a new goroutine. It is
// called exactly once, by Runtime.Root or Task.spawnChild, immediately
// after the Task is linked into its parent (if any).
func (t *Task) start() {
	go t.run()
}

// run is the controller: drive the body to an Exit, fold that into a
// finishing-substate transition, drain children, then settle into the
// matching terminal state. This is the whole of COMPONENT DESIGN's
// Controller + Evaluator once each Task is its own goroutine -- there is
// no scheduler queue to service, because the Go runtime already is one.
func (t *Task) run() {
	if err := t.acquireConcurrencySlot(); err != nil {
		t.transition(Running)
		t.err = &HaltError{Task: t, Cause: err}
		t.transition(Halting)
		t.drainChildren()
		t.finalize()
		return
	}
	defer t.releaseConcurrencySlot()

	t.transition(Running)

	exit := Evaluate(t.frame, t.body)

	var next State
	switch exit.Kind {
	case ExitOK:
		next = Completing
		t.result = exit.Value
	case ExitErr:
		next = Erroring
		t.err = &OperationError{Task: t, Err: exit.Err}
	case ExitAborted, ExitCrashed:
		t.mu.Lock()
		pending := t.pendingErr
		cause := t.haltCause
		t.mu.Unlock()
		switch {
		case pending != nil:
			// A child's error drove this halt (onChildFinished), so this
			// task rejects with that error, not a HaltError -- the same
			// outcome absorbChildError gives a child that fails after this
			// task's own body has already returned.
			next = Erroring
			t.err = pending
		case exit.Kind == ExitCrashed:
			next = Halting
			t.err = &HaltError{Task: t, Cause: exit.Err}
		default:
			next = Halting
			t.err = &HaltError{Task: t, Cause: cause}
		}
	}
	t.transition(next)

	t.drainChildren()
	t.finalize()
}

// transition moves the state machine and publishes the resulting
// EventState, holding the lock only across the machine mutation itself.
func (t *Task) transition(to State) {
	t.mu.Lock()
	prev := t.sm.transition(to)
	t.mu.Unlock()
	t.publish(Event{Kind: EventState, Task: t, From: prev, To: to})
}

// drainChildren implements the halt cascade: children are addressed
// serially in reverse spawn order (SUPERVISION's "halt cascade, serial,
// reverse spawn order"), each either halted outright or merely awaited
// if it was spawned with WithBlockParent(true) and this Task is only
// Completing, not Erroring or Halting.
func (t *Task) drainChildren() {
	t.mu.Lock()
	children := append([]*Task(nil), t.children...)
	cascading := t.sm.get() != Completing
	t.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		child := children[i]
		weHalted := cascading || !child.opts.BlockParent
		if weHalted {
			child.requestHalt(t.err)
		}
		err := child.await()
		// A child that ended Errored (not Halted) while this Task was only
		// Completing failed on its own, after this Task's body returned;
		// it is absorbed below like an awaited child's failure.
		if weHalted && (cascading || child.State() != Errored) {
			// This child's outcome is an expected consequence of our own
			// cascade (or it was already folded into our outcome earlier,
			// by onChildFinished, if it failed on its own while we were
			// still Running) -- not a fresh failure to absorb here.
			continue
		}
		if err != nil && !t.trapped(err) {
			t.absorbChildError(err)
		}
	}
}

// onChildFinished is invoked from inside a child's own finalize, before
// the child's Ensure hooks run, so that a child erroring while this
// Task is still Running can promptly begin this Task's own halt cascade
// -- SUPERVISION's structured failure propagation -- rather than
// waiting to be noticed only once this Task's own body happens to
// return. A child finishing after this Task has already entered a
// finishing substate is left alone here: drainChildren is already the
// one collecting it.
//
// The propagated error is recorded in pendingErr, not just used as the
// halt cause: a halt caused by a child's error must still land this
// task in Erroring/Errored with that error, exactly like absorbChildError
// does for a child that fails after this task's own body has already
// returned, not in Halting/Halted with a synthetic HaltError.
func (t *Task) onChildFinished(child *Task) {
	if child.State() != Errored {
		return
	}
	err := child.terminalErrorForParent()
	if err == nil {
		return
	}
	t.mu.Lock()
	running := t.sm.get() == Running
	t.mu.Unlock()
	if !running || t.opts.IgnoreChildErrors || t.trapped(err) {
		return
	}
	t.mu.Lock()
	if t.pendingErr == nil {
		t.pendingErr = err
	} else {
		t.pendingErr = errors.Join(t.pendingErr, err)
	}
	t.mu.Unlock()
	t.requestHalt(err)
}

// trapped asks every trapper registered via Ensure's sibling Trap, in
// registration order, whether it wants to swallow err on this child's
// behalf. The first trapper to return true stops the search.
func (t *Task) trapped(err error) bool {
	t.mu.Lock()
	trappers := append([]func(error) bool(nil), t.trappers...)
	t.mu.Unlock()
	for _, fn := range trappers {
		if fn(err) {
			return true
		}
	}
	return false
}

// absorbChildError folds an un-trapped child failure into this Task's
// own outcome, unless IgnoreChildErrors was set. A Completing parent
// that absorbs its first child error is upgraded to Erroring -- the
// Completing->Erroring edge state.go documents.
func (t *Task) absorbChildError(err error) {
	if t.opts.IgnoreChildErrors {
		return
	}
	t.mu.Lock()
	if t.sm.get() == Completing {
		prev := t.sm.transition(Erroring)
		t.mu.Unlock()
		t.publish(Event{Kind: EventState, Task: t, From: prev, To: Erroring})
	} else {
		t.mu.Unlock()
	}
	if t.err == nil {
		t.err = err
	} else {
		t.err = errors.Join(t.err, err)
	}
}

// finalize makes the Completing/Erroring/Halting substate permanent,
// fires Ensure hooks, and settles the Task's Deferred and done channel.
// Hooks run after the terminal transition so that a hook observing
// State() sees the final state, never a finishing one.
func (t *Task) finalize() {
	t.mu.Lock()
	cur := t.sm.get()
	var next State
	switch cur {
	case Completing:
		next = Completed
	case Erroring:
		next = Errored
	case Halting:
		next = Halted
	default:
		t.mu.Unlock()
		panic(fmt.Sprintf("arbor: finalize called from non-finishing state %s", cur))
	}
	prev := t.sm.transition(next)
	result, err := t.result, t.err
	t.mu.Unlock()

	t.publish(Event{Kind: EventState, Task: t, From: prev, To: next})

	if t.parent != nil {
		t.parent.onChildFinished(t)
		t.parent.unlink(t)
	}

	t.runEnsureHooks()

	t.deferred.Settle(Settled[any]{Value: result, Err: err})
	close(t.done)
}

func (t *Task) runEnsureHooks() {
	t.mu.Lock()
	hooks := append([]func(){}, t.ensures...)
	t.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// requestHalt marks the Task's Frame aborted, recording cause for the
// HaltError its controller goroutine will construct once the body
// notices and returns. It is idempotent: only the first call's cause is
// kept, matching the teacher's single-resolution Promise semantics.
func (t *Task) requestHalt(cause error) {
	t.haltOnce.Do(func() {
		t.mu.Lock()
		t.haltCause = cause
		t.mu.Unlock()
		t.frame.destroy(nil)
	})
}

// await blocks until the Task reaches a terminal state and returns the
// error a parent should fold into its own outcome.
func (t *Task) await() error {
	<-t.done
	return t.terminalErrorForParent()
}

// terminalErrorForParent is the error a parent should see for this
// Task's outcome: nil if it completed cleanly, or if WithIgnoreError
// was set at spawn time. It is only meaningful once the Task has
// reached a terminal state.
func (t *Task) terminalErrorForParent() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.opts.IgnoreError {
		return nil
	}
	return t.err
}

// acquireConcurrencySlot blocks until a slot is free in the parent's
// ConcurrencyLimit semaphore, if one was set, before this Task's body
// is allowed to start running. A Task with no parent, or whose parent
// set no limit, acquires nothing.
func (t *Task) acquireConcurrencySlot() error {
	if t.parent == nil || t.parent.childSem == nil {
		return nil
	}
	return t.parent.childSem.Acquire(t.frame.Context(), 1)
}

func (t *Task) releaseConcurrencySlot() {
	if t.parent == nil || t.parent.childSem == nil {
		return
	}
	t.parent.childSem.Release(1)
}

// Spawn starts a child Task under t directly, the same spawn+link step
// the Spawn Instruction performs through a Frame. A Resource's Init
// calls this on its scope argument when it needs to start ongoing work
// alongside the resource (SPEC_FULL §3.4/§6's "scope.spawn"): Init runs
// nested under scope's own Frame rather than the calling Task's, so it
// has no f.Task() of its own to yield Spawn through.
func (t *Task) Spawn(body any, opts ...Option) (*Task, error) {
	return t.spawnChild(body, opts...)
}

// spawnChild creates, links, and starts a new child Task running body
// under t, per SUPERVISION's spawn+link step. It refuses once t has
// stopped accepting new children, i.e. once it has entered one of its
// finishing or terminal states.
func (t *Task) spawnChild(body any, opts ...Option) (*Task, error) {
	t.mu.Lock()
	cur := t.sm.get()
	if cur.Finishing() || cur.Terminal() {
		t.mu.Unlock()
		return nil, newProgrammerError("Spawn on task %q refused: it is %s and no longer accepting children", t.name, cur)
	}
	t.mu.Unlock()

	o := resolveOptions(opts)
	child := t.rt.newTask(t, nil, body, o)
	t.link(child)
	child.start()
	return child, nil
}

// link records child as one of t's children and announces it.
func (t *Task) link(child *Task) {
	t.mu.Lock()
	t.children = append(t.children, child)
	t.mu.Unlock()
	t.publish(Event{Kind: EventLink, Task: t, Child: child})
}

// unlink removes child from t's children set and announces its
// departure. It runs from child's own finalize, after the terminal
// transition and before child's Ensure hooks run and its done channel
// closes, so that by the
// time an awaiter of child observes its terminal state, t.children no
// longer contains it (DATA MODEL Invariant 1: "a child is in at most
// one parent's children set; removal is synchronous with state exit").
func (t *Task) unlink(child *Task) {
	t.mu.Lock()
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i], t.children[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	t.publish(Event{Kind: EventUnlink, Task: t, Child: child})
}

func (t *Task) publish(ev Event) {
	t.bus.publish(ev)
}

// Ensure registers fn to run once this Task reaches a terminal state,
// regardless of outcome. It is the programmatic form of the Ensure
// Instruction; bodies that already hold a *Task (e.g. a Resource's
// scope argument) can call it directly without going through a Frame.
func (t *Task) Ensure(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensures = append(t.ensures, fn)
}

// Trap registers fn as a handler consulted, in registration order,
// whenever one of this Task's children finishes with an error this
// Task has not already chosen to ignore. A trapper returning true marks
// the error handled: it is not absorbed into this Task's own outcome.
func (t *Task) Trap(fn func(err error) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trappers = append(t.trappers, fn)
}

// Await blocks until the Task reaches a terminal state (or ctx is
// cancelled first) and returns its result and error -- including a
// *HaltError for a halted task, per ERROR HANDLING DESIGN. The error is
// returned even when WithIgnoreError hides it from the Task's parent.
// Use CatchHalt to swallow halts instead.
func (t *Task) Await(ctx Context) (any, error) {
	select {
	case <-t.deferred.Done():
		s, _ := t.deferred.Peek()
		return s.Value, s.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CatchHalt is Await, except a *HaltError is reported as (nil, nil)
// rather than propagated -- the External Interfaces' "catchHalt"
// variant an awaiter uses when it is the one who issued the halt and
// does not consider it a failure.
func (t *Task) CatchHalt(ctx Context) (any, error) {
	v, err := t.Await(ctx)
	if IsHalt(err) {
		return nil, nil
	}
	return v, err
}

// Halt requests a cooperative halt and blocks until the Task (and its
// whole subtree) has finished tearing down, returning its final error.
func (t *Task) Halt() error {
	t.requestHalt(nil)
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// ID returns the Task's monotonically increasing, runtime-scoped
// identifier, assigned once at spawn time by the owning Runtime.
func (t *Task) ID() uint64 {
	return t.id
}

// Name returns the Task's own, locally-unique name -- the last
// component of Path().
func (t *Task) Name() string {
	return t.name
}

// Path returns the Task's fully-qualified name: its own name prefixed
// by its parent's Path, all the way to the root. Grounded on
// engineRoot.go's use of filepath.Join to build a task's qualified name
// from its parent's, substituting "path" for "path/filepath" since
// these are logical tree addresses, not filesystem paths.
func (t *Task) Path() string {
	if t.parent == nil {
		return t.name
	}
	return path.Join(t.parent.Path(), t.name)
}

// State returns the Task's current position in the lifecycle state
// machine. Like the teacher's SupervisedTask.State, this is an
// instantaneous snapshot, useful for inspection but not for
// synchronization -- use Await/CatchHalt/Halt to wait for a terminal
// state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sm.get()
}

// Children returns a snapshot of this Task's current children set --
// every Task it has spawned and not yet unlinked. A child is removed
// from this set as soon as it reaches a terminal state (DATA MODEL
// Invariant 1/4); it does not linger here once finished.
func (t *Task) Children() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Task(nil), t.children...)
}

// Observe subscribes fn to every Event of kind this Task emits: its own
// EventState transitions, or the EventLink/EventUnlink of children
// joining and leaving its supervision set. The returned func removes
// the subscription.
func (t *Task) Observe(kind EventKind, fn func(Event)) (unsubscribe func()) {
	return t.bus.subscribe(kind, fn)
}

// defaultTaskName is used whenever a Task is spawned without an
// explicit WithName: it favors a UniqueName-qualified name over a bare
// "task-<id>" so that concurrent fan-outs stay distinguishable in logs
// and observer events without leaning on the id alone.
func defaultTaskName(id uint64) string {
	return UniqueName(fmt.Sprintf("task-%d", id))
}

// resolveChildName applies the teacher's default SetNameSelectionStrategy
// (supervision.go) to a requested child name: "%" characters are each
// replaced with a random digit, and any other collision is resolved by
// appending "+1", "+2", and so on until it stops colliding.
func (t *Task) resolveChildName(requested string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reserved == nil {
		t.reserved = make(map[string]struct{})
	}

	var name string
	if strings.Contains(requested, "%") {
		for {
			candidate := replacePercent(requested)
			if _, taken := t.reserved[candidate]; !taken {
				name = candidate
				break
			}
		}
	} else {
		name = requested
		for n := 1; ; n++ {
			if _, taken := t.reserved[name]; !taken {
				break
			}
			name = fmt.Sprintf("%s+%d", requested, n)
		}
	}

	t.reserved[name] = struct{}{}
	return name
}

func replacePercent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '%' {
			b.WriteByte('0' + byte(rand.Intn(10)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
