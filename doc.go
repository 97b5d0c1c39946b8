// Package hsm implements a hierarchical state machine runtime: nested
// composite states with entry/exit hooks, guarded transitions (internal,
// external, and self), shallow and deep history, and a lifecycle event bus
// for observing dispatch as it happens.
//
// Build a state forest with CreateState, AddSubstate, SetInitialSubstate,
// and AddTransition, then hand the root to either PassiveMachine, whose
// Send only enqueues and Execute does the work, or ActiveMachine, which
// runs its own worker goroutine and processes events as they arrive.
package hsm
