package hsm

import "github.com/Robin--/StateMachineToolkit/muid"

// PassiveMachine is a synchronous dispatcher: Send only enqueues, and no
// event is processed until the caller calls Execute. Events sent from
// within an entry/exit/action/guard callback during Execute are queued and
// drained in the same call, in the order they were sent.
type PassiveMachine[S comparable, E comparable] struct {
	core[S, E]
	queue eventQueue[E]
}

// NewPassiveMachine constructs an uninitialized passive machine. Call
// Initialize before sending any events.
func NewPassiveMachine[S comparable, E comparable]() *PassiveMachine[S, E] {
	return &PassiveMachine[S, E]{}
}

// Initialize drills the machine down from root to its starting leaf. It
// must be called exactly once, before any Send.
func (m *PassiveMachine[S, E]) Initialize(root *State[S, E]) error {
	return m.core.initialize(root)
}

// Send enqueues event for processing and returns immediately without
// running any part of the dispatch protocol. Call Execute to drain the
// queue. Returns ErrNotInitialized if the machine hasn't been started yet.
func (m *PassiveMachine[S, E]) Send(event E, args ...any) (string, error) {
	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if !initialized {
		return "", ErrNotInitialized
	}
	id := muid.NewString()
	m.queue.push(pendingEvent[E]{id: id, event: event, args: args})
	return id, nil
}

// Execute drains every event currently queued, including ones enqueued by
// callbacks run while draining, processing them one at a time in FIFO
// order. It returns once the queue is empty.
func (m *PassiveMachine[S, E]) Execute() {
	for {
		pe, ok := m.queue.pop()
		if !ok {
			return
		}
		m.runOne(pe)
	}
}

// CurrentStateID returns the id of the currently active leaf state, and
// false if the machine has not been initialized.
func (m *PassiveMachine[S, E]) CurrentStateID() (S, bool) {
	return m.currentStateID()
}

// SubscribeBeginDispatch registers fn to run synchronously, on whichever
// goroutine calls Execute, before handler resolution for each dispatch.
func (m *PassiveMachine[S, E]) SubscribeBeginDispatch(fn func(BeginDispatchEvent[S, E])) Unsubscribe {
	return m.bus.beginDispatch.subscribe(fn)
}

// SubscribeTransitionDeclined registers fn to run when a dispatched event
// matches no transition.
func (m *PassiveMachine[S, E]) SubscribeTransitionDeclined(fn func(TransitionDeclinedEvent[S, E])) Unsubscribe {
	return m.bus.declined.subscribe(fn)
}

// SubscribeTransitionCompleted registers fn to run after a matched
// transition's chain has finished running.
func (m *PassiveMachine[S, E]) SubscribeTransitionCompleted(fn func(TransitionCompletedEvent[S, E])) Unsubscribe {
	return m.bus.completed.subscribe(fn)
}

// SubscribeExceptionThrown registers fn to run whenever a guard, action,
// or entry/exit hook panics.
func (m *PassiveMachine[S, E]) SubscribeExceptionThrown(fn func(ExceptionThrownEvent[S, E])) Unsubscribe {
	return m.bus.exception.subscribe(fn)
}
