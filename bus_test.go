package hsm_test

import (
	"slices"
	"testing"

	hsm "github.com/Robin--/StateMachineToolkit"
)

// A panicking BeginDispatch subscriber is isolated: it shows up as an
// ExceptionThrown, the remaining subscribers still run, and the dispatch
// itself still completes.
func TestSubscriberPanicIsIsolated(t *testing.T) {
	s1 := hsm.CreateState[string, string]("S1")
	s2 := hsm.CreateState[string, string]("S2")
	s1.AddTransition("E", hsm.WithTarget[string, string](s2))

	m := hsm.NewPassiveMachine[string, string]()
	var secondSubscriberRan bool
	m.SubscribeBeginDispatch(func(hsm.BeginDispatchEvent[string, string]) {
		panic("subscriber exploded")
	})
	m.SubscribeBeginDispatch(func(hsm.BeginDispatchEvent[string, string]) {
		secondSubscriberRan = true
	})
	var exceptions []hsm.ExceptionThrownEvent[string, string]
	m.SubscribeExceptionThrown(func(e hsm.ExceptionThrownEvent[string, string]) {
		exceptions = append(exceptions, e)
	})
	var completed bool
	m.SubscribeTransitionCompleted(func(hsm.TransitionCompletedEvent[string, string]) {
		completed = true
	})

	if err := m.Initialize(s1); err != nil {
		t.Fatal(err)
	}
	m.Send("E")
	m.Execute()

	if !secondSubscriberRan {
		t.Fatal("expected the second BeginDispatch subscriber to still run")
	}
	if len(exceptions) != 1 {
		t.Fatalf("expected one exception from the panicking subscriber, got %d", len(exceptions))
	}
	if !completed {
		t.Fatal("expected TransitionCompleted to still fire")
	}
}

// A panicking ExceptionThrown subscriber does not re-enter the exception
// channel: it is logged and the chain stops there.
func TestExceptionSubscriberPanicDoesNotLoop(t *testing.T) {
	s1 := hsm.CreateState[string, string]("S1", hsm.WithExit[string, string](func(args []any) {
		panic("exit failed")
	}))
	s2 := hsm.CreateState[string, string]("S2")
	s1.AddTransition("E", hsm.WithTarget[string, string](s2))

	m := hsm.NewPassiveMachine[string, string]()
	var exceptionCalls int
	m.SubscribeExceptionThrown(func(hsm.ExceptionThrownEvent[string, string]) {
		exceptionCalls++
		panic("exception subscriber also explodes")
	})

	if err := m.Initialize(s1); err != nil {
		t.Fatal(err)
	}
	m.Send("E")
	m.Execute()

	if exceptionCalls != 1 {
		t.Fatalf("expected exactly one exception delivery, got %d", exceptionCalls)
	}
	if cur, _ := m.CurrentStateID(); cur != "S2" {
		t.Fatalf("expected the transition to still complete, got %v", cur)
	}
}

// Unsubscribe stops further delivery, including when called from within
// the callback itself.
func TestUnsubscribeStopsDelivery(t *testing.T) {
	s1 := hsm.CreateState[string, string]("S1")
	s2 := hsm.CreateState[string, string]("S2")
	s1.AddTransition("E", hsm.WithTarget[string, string](s2))

	m := hsm.NewPassiveMachine[string, string]()
	var calls int
	var unsubscribe hsm.Unsubscribe
	unsubscribe = m.SubscribeTransitionCompleted(func(hsm.TransitionCompletedEvent[string, string]) {
		calls++
		unsubscribe()
	})

	if err := m.Initialize(s1); err != nil {
		t.Fatal(err)
	}
	m.Send("E")
	m.Execute()
	m.Send("E") // declined: S2 has no outgoing transition for E, but exercises a second dispatch
	m.Execute()

	if calls != 1 {
		t.Fatalf("expected exactly one delivery before unsubscribe took effect, got %d", calls)
	}
}

// P1: every dispatch yields exactly one BeginDispatch and exactly one of
// TransitionDeclined xor TransitionCompleted.
func TestEveryDispatchYieldsExactlyOneTerminalEvent(t *testing.T) {
	s1 := hsm.CreateState[string, string]("S1")
	s2 := hsm.CreateState[string, string]("S2")
	s1.AddTransition("match", hsm.WithTarget[string, string](s2))

	m := hsm.NewPassiveMachine[string, string]()
	r := newRecorder(m)
	if err := m.Initialize(s1); err != nil {
		t.Fatal(err)
	}

	m.Send("match")
	m.Send("no-match")
	m.Execute()

	if len(r.begin) != 2 {
		t.Fatalf("expected 2 BeginDispatch, got %d", len(r.begin))
	}
	if len(r.completed) != 1 || len(r.declined) != 1 {
		t.Fatalf("expected 1 completed and 1 declined, got completed=%d declined=%d", len(r.completed), len(r.declined))
	}
	if got := r.trace.snapshot(); !slices.Equal(got, []string{"begin", "completed", "begin", "declined"}) {
		t.Fatalf("unexpected interleaving: %v", got)
	}
}
