package hsm

import (
	"fmt"
	"sync"

	"github.com/Robin--/StateMachineToolkit/kind"
	"github.com/Robin--/StateMachineToolkit/muid"
)

// core is the single "run one dispatch" primitive shared by PassiveMachine
// and ActiveMachine. Neither dispatcher duplicates the exit/action/entry
// chain or handler-resolution logic; they differ only in how runOne gets
// called relative to Send.
type core[S comparable, E comparable] struct {
	bus bus[S, E]

	mu      sync.RWMutex // guards current; history slots are touched only by the drain loop
	root    *State[S, E]
	current *State[S, E]

	initializing bool // claimed for the duration of initialize, so a second caller fails fast
	initialized  bool
}

// initialize drills from root down to a leaf, running entry actions top
// down, and records root as the machine's forest entry point. It is not a
// dispatched event: no BeginDispatch is emitted, and any entry action that
// panics is reported as an ExceptionThrown with MachineInitialized=false
// rather than propagated - the machine is left at the deepest state it
// reached.
func (c *core[S, E]) initialize(root *State[S, E]) error {
	c.mu.Lock()
	if c.initialized || c.initializing {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	// Claim initialization before running any entry action, so a second
	// concurrent Initialize call fails fast instead of racing this one to
	// drill the tree.
	c.initializing = true
	c.mu.Unlock()

	var zero E
	id := muid.NewString()
	c.runEntry(root, id, zero, nil, false)
	leaf := c.enterComposite(root, id, zero, nil, false)

	c.mu.Lock()
	c.root = root
	c.current = leaf
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// currentStateID reports the id of the currently active leaf state.
func (c *core[S, E]) currentStateID() (S, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		var zero S
		return zero, false
	}
	return c.current.id, true
}

// runOne pulls one pending event through the full dispatch protocol:
// resolve a handler by walking ancestors, then either run the matched
// transition's actions in place (internal) or its exit/action/entry chain
// (external), committing the new current state and emitting the
// corresponding lifecycle event. Called from Execute (passive) or the
// worker loop (active); never concurrently with itself.
func (c *core[S, E]) runOne(pe pendingEvent[E]) {
	c.mu.RLock()
	leaf := c.current
	c.mu.RUnlock()
	c.bus.emitBeginDispatch(pe.id, pe.event, leaf.id, pe.args)

	t, owner := c.resolveTransition(leaf, pe.id, pe.event, pe.args)
	if t == nil {
		c.bus.emitDeclined(pe.id, pe.event, leaf.id, pe.args)
		return
	}

	if t.Internal() {
		c.runActions(t.actions, pe.id, pe.event, owner.id, pe.args)
		c.bus.emitCompleted(pe.id, pe.event, owner.id, leaf.id, pe.args)
		return
	}

	lca := lowestCommonAncestor(owner, t.target)

	for s := leaf; s != lca; s = s.parent {
		c.runExit(s, pe.id, pe.event, pe.args)
		if parent := s.parent; parent != nil {
			switch {
			case kind.Is(parent.historyKind, HistoryShallow):
				parent.historySlot = s
			case kind.Is(parent.historyKind, HistoryDeep):
				parent.historySlot = leaf
			}
		}
	}

	c.runActions(t.actions, pe.id, pe.event, owner.id, pe.args)

	for _, s := range pathBetween(lca, t.target) {
		c.runEntry(s, pe.id, pe.event, pe.args, true)
	}
	final := t.target
	if len(t.target.children) > 0 {
		final = c.enterComposite(t.target, pe.id, pe.event, pe.args, true)
	}

	c.mu.Lock()
	c.current = final
	c.mu.Unlock()
	c.bus.emitCompleted(pe.id, pe.event, owner.id, final.id, pe.args)
}

// resolveTransition walks from leaf up through its ancestors, returning
// the first transition registered for event whose guard passes, together
// with the state whose table it came from. A guard that panics counts as
// false and is reported as an ExceptionThrown, but scanning continues.
func (c *core[S, E]) resolveTransition(leaf *State[S, E], id string, event E, args []any) (*Transition[S, E], *State[S, E]) {
	for s := leaf; s != nil; s = s.parent {
		for _, t := range s.table[event] {
			if c.evalGuard(t, id, s.id, args) {
				return t, s
			}
		}
	}
	return nil, nil
}

func (c *core[S, E]) evalGuard(t *Transition[S, E], id string, source S, args []any) (ok bool) {
	if t.guard == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			c.bus.emitException(id, t.event, source, args, fmt.Errorf("guard: %v", r), true)
		}
	}()
	return t.guard(args)
}

func (c *core[S, E]) runActions(actions []Action, id string, event E, source S, args []any) {
	for _, action := range actions {
		c.runAction(action, id, event, source, args)
	}
}

func (c *core[S, E]) runAction(action Action, id string, event E, source S, args []any) {
	defer func() {
		if r := recover(); r != nil {
			c.bus.emitException(id, event, source, args, fmt.Errorf("action: %v", r), true)
		}
	}()
	action(args)
}

func (c *core[S, E]) runEntry(s *State[S, E], id string, event E, args []any, machineInitialized bool) {
	if s.entry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.bus.emitException(id, event, s.id, args, fmt.Errorf("entry: %v", r), machineInitialized)
		}
	}()
	s.entry(args)
}

func (c *core[S, E]) runExit(s *State[S, E], id string, event E, args []any) {
	if s.exit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.bus.emitException(id, event, s.id, args, fmt.Errorf("exit: %v", r), true)
		}
	}()
	s.exit(args)
}

// enterComposite assumes cur's own entry action has already run, and
// descends through initial substates - or, where cur has a populated
// history slot, resumes there - until a leaf is reached, running entry
// for every intermediate state it passes through.
func (c *core[S, E]) enterComposite(cur *State[S, E], id string, event E, args []any, machineInitialized bool) *State[S, E] {
	for len(cur.children) > 0 {
		if kind.Is(cur.historyKind, HistoryDeep) && cur.historySlot != nil {
			for _, s := range pathBetween(cur, cur.historySlot) {
				c.runEntry(s, id, event, args, machineInitialized)
			}
			return cur.historySlot
		}

		var next *State[S, E]
		if kind.Is(cur.historyKind, HistoryShallow) && cur.historySlot != nil {
			next = cur.historySlot
		} else {
			next = cur.initial
			if next == nil {
				c.bus.emitException(id, event, cur.id, args, ErrNoInitialSubstate, machineInitialized)
				return cur
			}
		}
		c.runEntry(next, id, event, args, machineInitialized)
		cur = next
	}
	return cur
}
