package arbor

import "fmt"

// State is a Task's position in the lifecycle state machine of
// (informally) "DATA MODEL / Lifecycle": pending -> running ->
// {completing|erroring|halting} -> {completed|errored|halted}.
//
// completing, erroring, and halting are "finishing" substates: no new
// instructions are accepted on a Task in one of these, and the halt
// cascade against its children is already underway.
type State uint8

const (
	Pending    State = iota // unpowered; created but not started.
	Running                 // start() called; the controller is driving the body.
	Completing              // body resolved; waiting for children to drain.
	Erroring                // body rejected; a forced halt cascade is underway.
	Halting                 // halt() called; a halt cascade is underway.
	Completed               // terminal: result is set.
	Errored                 // terminal: error is set.
	Halted                  // terminal: neither result nor error; consumers see HaltError.
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completing:
		return "completing"
	case Erroring:
		return "erroring"
	case Halting:
		return "halting"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether s is one of the three states a Task is
// destroyed in: Completed, Errored, or Halted.
func (s State) Terminal() bool {
	switch s {
	case Completed, Errored, Halted:
		return true
	default:
		return false
	}
}

// Finishing reports whether s is one of the three substates in which a
// Task no longer accepts new instructions but is still draining
// children: Completing, Erroring, or Halting.
func (s State) Finishing() bool {
	switch s {
	case Completing, Erroring, Halting:
		return true
	default:
		return false
	}
}

// legalEdges is the transition table of COMPONENT DESIGN / Task State
// Machine. Any transition not present here is a programmer error (and
// machine.transition panics -- this kernel, like the teacher's
// supervisor.Run single-run check, treats such violations as bugs in
// the kernel itself, not recoverable conditions for a caller).
var legalEdges = map[State]map[State]bool{
	Pending: {Running: true},
	Running: {Completing: true, Erroring: true, Halting: true},
	// Completing -> Erroring covers the Trapping protocol's "a parent
	// already draining children normally can still be rejected by one
	// of them" case: the literal transition table only shows a
	// finishing task moving to Halting or its own terminal state, but a
	// child erroring mid-drain must be able to upgrade a Completing
	// parent into Erroring so the parent's own outcome reflects it.
	Completing: {Erroring: true, Halting: true, Completed: true},
	Erroring:   {Halting: true, Errored: true},
	Halting:    {Halted: true},
}

// stateMachine enforces the legal states and transitions for a single
// Task. It is not safe for concurrent use by itself; Task serializes
// access via its own mutex, mirroring the teacher's use of a single
// sync.Mutex to guard all of a supervisor's phase bookkeeping
// (supervision.go's supervisor.mu).
type stateMachine struct {
	current State
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: Pending}
}

// transition moves the machine from its current state to next,
// panicking if the edge is not legal. It returns the state the machine
// was in before the move, so callers can decide whether this move
// entered a finishing substate, a terminal state, or neither.
func (m *stateMachine) transition(next State) State {
	prev := m.current
	if !legalEdges[prev][next] {
		panic(fmt.Sprintf("arbor: illegal state transition %s -> %s", prev, next))
	}
	m.current = next
	return prev
}

func (m *stateMachine) get() State {
	return m.current
}
