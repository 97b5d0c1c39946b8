package hsm

import (
	"sync"

	"github.com/Robin--/StateMachineToolkit/muid"
)

// ActiveMachine is an asynchronous dispatcher: a dedicated worker goroutine
// owns the dispatch engine, and Send only enqueues and signals it before
// returning. The queue backing it is an unbounded slice rather than a
// buffered channel, so the worker is parked on a sync.Cond instead of a
// channel receive - a channel would need a capacity chosen up front.
type ActiveMachine[S comparable, E comparable] struct {
	core[S, E]
	queue eventQueue[E]

	cond    *sync.Cond
	stopped bool
	done    chan struct{}
}

// NewActiveMachine constructs an uninitialized active machine. Call
// Initialize to start its worker before sending any events.
func NewActiveMachine[S comparable, E comparable]() *ActiveMachine[S, E] {
	return &ActiveMachine[S, E]{cond: sync.NewCond(&sync.Mutex{})}
}

// Initialize drills the machine down from root to its starting leaf and
// starts the worker goroutine that will process sent events.
func (m *ActiveMachine[S, E]) Initialize(root *State[S, E]) error {
	if err := m.core.initialize(root); err != nil {
		return err
	}
	m.done = make(chan struct{})
	go m.run()
	return nil
}

// Send enqueues event and wakes the worker, returning immediately without
// waiting for it to be processed. Returns ErrNotInitialized if the machine
// hasn't been started yet.
func (m *ActiveMachine[S, E]) Send(event E, args ...any) (string, error) {
	m.mu.RLock()
	initialized := m.initialized
	m.mu.RUnlock()
	if !initialized {
		return "", ErrNotInitialized
	}

	m.cond.L.Lock()
	if m.stopped {
		m.cond.L.Unlock()
		return "", ErrStopped
	}
	m.cond.L.Unlock()

	id := muid.NewString()
	m.queue.push(pendingEvent[E]{id: id, event: event, args: args})

	m.cond.L.Lock()
	m.cond.Signal()
	m.cond.L.Unlock()
	return id, nil
}

// run is the worker loop: pop and dispatch until the queue is empty, then
// block until Send or Stop wakes it again.
func (m *ActiveMachine[S, E]) run() {
	for {
		pe, ok := m.queue.pop()
		if ok {
			m.runOne(pe)
			continue
		}

		m.cond.L.Lock()
		for m.queue.len() == 0 && !m.stopped {
			m.cond.Wait()
		}
		stopped := m.stopped
		m.cond.L.Unlock()

		if stopped && m.queue.len() == 0 {
			close(m.done)
			return
		}
	}
}

// Stop signals the worker to exit once it has drained every event already
// sent, and blocks until it does. Events sent after Stop is called are not
// guaranteed to be processed.
func (m *ActiveMachine[S, E]) Stop() {
	m.cond.L.Lock()
	m.stopped = true
	m.cond.Broadcast()
	m.cond.L.Unlock()
	<-m.done
}

// CurrentStateID returns the id of the currently active leaf state, and
// false if the machine has not been initialized.
func (m *ActiveMachine[S, E]) CurrentStateID() (S, bool) {
	return m.currentStateID()
}

// SubscribeBeginDispatch registers fn to run synchronously, on the worker
// goroutine, before handler resolution for each dispatch.
func (m *ActiveMachine[S, E]) SubscribeBeginDispatch(fn func(BeginDispatchEvent[S, E])) Unsubscribe {
	return m.bus.beginDispatch.subscribe(fn)
}

// SubscribeTransitionDeclined registers fn to run when a dispatched event
// matches no transition.
func (m *ActiveMachine[S, E]) SubscribeTransitionDeclined(fn func(TransitionDeclinedEvent[S, E])) Unsubscribe {
	return m.bus.declined.subscribe(fn)
}

// SubscribeTransitionCompleted registers fn to run after a matched
// transition's chain has finished running.
func (m *ActiveMachine[S, E]) SubscribeTransitionCompleted(fn func(TransitionCompletedEvent[S, E])) Unsubscribe {
	return m.bus.completed.subscribe(fn)
}

// SubscribeExceptionThrown registers fn to run whenever a guard, action,
// or entry/exit hook panics.
func (m *ActiveMachine[S, E]) SubscribeExceptionThrown(fn func(ExceptionThrownEvent[S, E])) Unsubscribe {
	return m.bus.exception.subscribe(fn)
}
