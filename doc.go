// Package arbor implements the core of a structured-concurrency task
// kernel: a cooperative scheduler in which every unit of work ("task")
// is a node in a dynamically-growing supervision tree.
//
// A Task's body is an ordinary Go function that drives a *Frame* by
// calling Do with Instructions (Spawn, Ensure, UseResource, Suspend,
// Action, Yield). Each Task runs on its own goroutine, so the
// interleaving a single-threaded host would need a thunk stack for is
// provided for free by the Go scheduler; Frame's job is narrower:
// install one cancellation point per suspending Instruction, drain
// children on the way out, and classify how the body finally exited.
//
// Concrete operations built on top of this core -- channels, timers,
// HTTP clients, and the like -- are external collaborators. This
// package only specifies the interfaces they consume: spawning,
// ensure-hooks, yielding Instructions, and scope access.
package arbor
