package hsm

import "errors"

// Construction-time errors are raised synchronously, as the panic value, in
// the caller that built the offending state or transition; they never reach
// the lifecycle bus, since the tree isn't running yet.
var (
	// ErrInitialNotChild is the panic value of SetInitialSubstate when the
	// given state is not one of the receiver's direct children.
	ErrInitialNotChild = errors.New("hsm: initial substate is not a direct child")
	// ErrAlreadyParented is the panic value of AddSubstate when the child
	// already belongs to another state; the forest invariant forbids
	// re-parenting.
	ErrAlreadyParented = errors.New("hsm: state already has a parent")
	// ErrCycle is the panic value of AddSubstate when adding the child would
	// introduce a cycle in the parent forest.
	ErrCycle = errors.New("hsm: adding substate would introduce a cycle")

	// ErrNotInitialized is returned by Send when the machine has not yet
	// been started with Initialize.
	ErrNotInitialized = errors.New("hsm: machine has not been initialized")
	// ErrAlreadyInitialized is returned by Initialize when called more
	// than once on the same machine.
	ErrAlreadyInitialized = errors.New("hsm: machine has already been initialized")
	// ErrStopped is returned by ActiveMachine.Send once Stop has been
	// called; no further events are accepted.
	ErrStopped = errors.New("hsm: machine has been stopped")
)

// ErrNoInitialSubstate is not returned to any caller directly. A composite
// state can only be found missing its initial substate while the engine is
// drilling into it - at Initialize, or mid-dispatch when a transition
// targets it - so it surfaces the same way any other drill-time failure
// does: as the Err field of an ExceptionThrownEvent, leaving the machine at
// the deepest state it managed to enter.
var ErrNoInitialSubstate = errors.New("hsm: composite state has no initial substate")
