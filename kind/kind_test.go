package kind

import "testing"

func TestIsFollowsDeclaredLineage(t *testing.T) {
	element := New()
	vertex := New(element)
	state := New(vertex)
	transition := New(element)

	if !Is(state, vertex) {
		t.Error("state should be a vertex")
	}
	if !Is(state, element) {
		t.Error("state should be an element by transitivity")
	}
	if Is(state, transition) {
		t.Error("state should not be a transition")
	}
	if !Is(transition, element) {
		t.Error("transition should be an element")
	}
	if Is(transition, vertex) {
		t.Error("transition should not be a vertex")
	}
}

func TestIsMatchesAnyOfSeveralBases(t *testing.T) {
	a := New()
	b := New()
	c := New(a)

	if !Is(c, b, a) {
		t.Error("c should match when any base matches")
	}
	if Is(c, b) {
		t.Error("c should not match an unrelated base")
	}
}

func TestNewDeduplicatesSharedAncestors(t *testing.T) {
	element := New()
	left := New(element)
	right := New(element)
	both := New(left, right)

	if !Is(both, left) || !Is(both, right) || !Is(both, element) {
		t.Error("both should carry every distinct ancestor")
	}
}

func TestZeroValueIsUnkind(t *testing.T) {
	var none Kind
	state := New()
	if Is(state, none) {
		t.Error("a real kind should never match the zero Kind")
	}
}
