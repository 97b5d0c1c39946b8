package hsm

import "github.com/Robin--/StateMachineToolkit/kind"

// History kinds tag how a composite state resolves its descent when it is
// re-entered: start fresh from the initial substate, or resume where the
// region last left off. Tagged with kind.Kind rather than a plain enum so
// the dispatch engine can lean on the same "is-a" primitive the rest of
// the runtime uses for its element taxonomy.

// HistoryKind selects what a composite state remembers about its most
// recently active configuration.
type HistoryKind = kind.Kind

// kind.New mints its id at runtime (an atomic counter), so these cannot be
// consts; they are minted once, at package init, and never change after.
var (
	// HistoryNone means re-entering the state always starts from its
	// initial substate.
	HistoryNone HistoryKind = kind.New()
	// HistoryShallow means re-entering the state resumes its most
	// recently active direct child, which then resolves its own
	// substate normally (by its own initial substate or history).
	HistoryShallow HistoryKind = kind.New()
	// HistoryDeep means re-entering the state resumes the exact leaf
	// that was active when the region was last exited.
	HistoryDeep HistoryKind = kind.New()
)

// Action runs a state entry/exit hook or a transition effect. args carries
// whatever was passed to Send for the triggering event and is opaque to
// the engine.
type Action func(args []any)

// Guard decides whether a transition fires. A nil Guard is equivalent to
// one that always returns true.
type Guard func(args []any) bool

// State is a node in a machine's state forest. Build one with CreateState,
// wire up children with AddSubstate and SetInitialSubstate, and attach
// outgoing transitions with AddTransition. S and E are the caller's state
// and event id types; both must be comparable so the engine can use them
// as map keys and equality-compare them without reflection.
type State[S comparable, E comparable] struct {
	id S

	parent   *State[S, E]
	children []*State[S, E]
	initial  *State[S, E]

	historyKind HistoryKind
	historySlot *State[S, E]

	entry Action
	exit  Action

	// table holds this state's own outgoing transitions, keyed by
	// triggering event; lookup walks table on every ancestor from the
	// current leaf up to the root, first-match-wins within each level.
	table map[E][]*Transition[S, E]
}

// Transition is one entry in a state's transition table: a guarded,
// optionally-targeted response to an event. Built with AddTransition, not
// directly.
type Transition[S comparable, E comparable] struct {
	source  *State[S, E]
	event   E
	guard   Guard
	actions []Action
	target  *State[S, E] // nil => internal transition
}

// Internal reports whether the transition has no target, meaning it runs
// its actions without exiting or re-entering any state.
func (t *Transition[S, E]) Internal() bool { return t.target == nil }

// TransitionOption configures a Transition at construction time.
type TransitionOption[S comparable, E comparable] func(*Transition[S, E])

// WithGuard attaches a guard predicate; the transition is only eligible
// when it returns true.
func WithGuard[S comparable, E comparable](g Guard) TransitionOption[S, E] {
	return func(t *Transition[S, E]) { t.guard = g }
}

// WithActions appends effects run, in order, after the exit chain and
// before the entry chain (or, for an internal transition, with no exit or
// entry chain at all).
func WithActions[S comparable, E comparable](actions ...Action) TransitionOption[S, E] {
	return func(t *Transition[S, E]) { t.actions = append(t.actions, actions...) }
}

// WithTarget sets the transition's target state. Omitting this option
// makes the transition internal.
func WithTarget[S comparable, E comparable](target *State[S, E]) TransitionOption[S, E] {
	return func(t *Transition[S, E]) { t.target = target }
}

// StateOption configures a State at construction time.
type StateOption[S comparable, E comparable] func(*State[S, E])

// WithEntry attaches an entry action, run every time the state is entered.
func WithEntry[S comparable, E comparable](action Action) StateOption[S, E] {
	return func(s *State[S, E]) { s.entry = action }
}

// WithExit attaches an exit action, run every time the state is exited.
func WithExit[S comparable, E comparable](action Action) StateOption[S, E] {
	return func(s *State[S, E]) { s.exit = action }
}

// WithHistory marks the state as a history-tracking composite. Has no
// effect on a state with no children.
func WithHistory[S comparable, E comparable](k HistoryKind) StateOption[S, E] {
	return func(s *State[S, E]) { s.historyKind = k }
}

// CreateState creates a standalone state identified by id. Attach it to a
// parent with AddSubstate before passing the forest's root to Initialize.
func CreateState[S comparable, E comparable](id S, opts ...StateOption[S, E]) *State[S, E] {
	s := &State[S, E]{
		id:          id,
		historyKind: HistoryNone,
		table:       map[E][]*Transition[S, E]{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the state's identifier.
func (s *State[S, E]) ID() S { return s.id }

// Parent returns s's parent, or nil if s is a top-level state.
func (s *State[S, E]) Parent() *State[S, E] { return s.parent }

// AddSubstate makes child a direct child of s. It panics if child already
// has a parent or if adding it would introduce a cycle (e.g. adding an
// ancestor of s as its own child).
func (s *State[S, E]) AddSubstate(child *State[S, E]) *State[S, E] {
	if child.parent != nil {
		panic(ErrAlreadyParented)
	}
	for anc := s; anc != nil; anc = anc.parent {
		if anc == child {
			panic(ErrCycle)
		}
	}
	child.parent = s
	s.children = append(s.children, child)
	return s
}

// SetInitialSubstate designates child, which must already be a direct
// child of s, as the substate entered by default when s is entered
// without a usable history slot.
func (s *State[S, E]) SetInitialSubstate(child *State[S, E]) *State[S, E] {
	for _, c := range s.children {
		if c == child {
			s.initial = child
			return s
		}
	}
	panic(ErrInitialNotChild)
}

// AddTransition appends a transition to s's table for event. Guards are
// checked in the order their transitions were added; the first whose
// guard passes (or has none) is taken.
func (s *State[S, E]) AddTransition(event E, opts ...TransitionOption[S, E]) *State[S, E] {
	t := &Transition[S, E]{source: s, event: event}
	for _, opt := range opts {
		opt(t)
	}
	s.table[event] = append(s.table[event], t)
	return s
}

// depth returns the number of ancestors between s and the forest's root;
// the root itself has depth 0.
func (s *State[S, E]) depth() int {
	d := 0
	for anc := s.parent; anc != nil; anc = anc.parent {
		d++
	}
	return d
}

// lowestCommonAncestor finds the lowest common ancestor of a and b. By
// convention lowestCommonAncestor(x, x) is x's parent: a self-transition
// needs somewhere to root its exit/entry chain that isn't x itself, since
// x must be fully exited before it is re-entered.
func lowestCommonAncestor[S comparable, E comparable](a, b *State[S, E]) *State[S, E] {
	if a == b {
		return a.parent
	}
	da, db := a.depth(), b.depth()
	for da > db {
		a = a.parent
		da--
	}
	for db > da {
		b = b.parent
		db--
	}
	for a != b {
		a = a.parent
		b = b.parent
	}
	return a
}

// pathBetween returns the chain of states strictly below ancestor down to
// and including descendant, ordered top-down (the state whose entry/exit
// should run first comes first).
func pathBetween[S comparable, E comparable](ancestor, descendant *State[S, E]) []*State[S, E] {
	var path []*State[S, E]
	for s := descendant; s != ancestor && s != nil; s = s.parent {
		path = append(path, s)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
