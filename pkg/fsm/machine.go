package fsm

import (
	"errors"
	"fmt"
)

var (
	// ErrMachineFailed wraps the error that put a machine into its failed state.
	ErrMachineFailed = errors.New("state machine failed")
	ErrNotStarted    = errors.New("state machine not started")
)

// Name returns the machine name used in errors.
func (m *Machine[T]) Name() string { return m.name }

// Context returns the context handed to guards and actions.
func (m *Machine[T]) Context() T { return m.ctx }

// Start compiles the graph if needed and enters the initial state.
func (m *Machine[T]) Start() error {
	if m.started {
		return fmt.Errorf("fsm %s: already started", m.name)
	}
	if !m.compiled {
		if err := m.CompilePaths(); err != nil {
			return err
		}
	}
	m.started = true

	m.dispatching = true
	target := m.resolve(m.initialID, false)
	m.enter(m.nodes[target].Path, -1, nil)
	m.drain()
	return m.err
}

// Send delivers an event. Events sent while another is being processed, for
// example from an action, are queued and handled once the current one completes.
// Events a stopped or finished machine receives are dropped; events with no
// matching transition are ignored.
func (m *Machine[T]) Send(ev Event) error {
	if m.err != nil {
		return m.err
	}
	if !m.started {
		return fmt.Errorf("fsm %s: %w", m.name, ErrNotStarted)
	}
	if m.stopped {
		return nil
	}
	m.queue = append(m.queue, ev)
	if m.dispatching {
		return nil
	}
	m.dispatching = true
	m.drain()
	return m.err
}

// Stop exits every active state, innermost first, and drops further events.
// Called from inside an action it takes effect once the current event completes.
func (m *Machine[T]) Stop() {
	if !m.started || m.stopped {
		return
	}
	if m.dispatching {
		m.pendingStop = true
		return
	}
	m.stop()
}

// Fail puts the machine into its failed state with err as the cause. The active
// states are exited so their periodic work is released.
func (m *Machine[T]) Fail(err error) {
	if m.err != nil || m.stopped {
		return
	}
	m.err = fmt.Errorf("%w: %s in %s: %w", ErrMachineFailed, m.name, m.StateName(), err)
	m.queue = nil
	m.exitAll()
	m.stopped = true
	if m.OnError != nil {
		m.OnError(m.err)
	}
}

// State returns the active leaf state, StateNone when not running.
func (m *Machine[T]) State() StateID {
	if len(m.activePath) == 0 {
		return StateNone
	}
	return m.activePath[len(m.activePath)-1]
}

// StateName returns the name of the active leaf state.
func (m *Machine[T]) StateName() string {
	if node, ok := m.nodes[m.State()]; ok {
		return node.Name
	}
	return ""
}

// In reports whether id is the active leaf or one of its ancestors.
func (m *Machine[T]) In(id StateID) bool {
	for _, active := range m.activePath {
		if active == id {
			return true
		}
	}
	return false
}

// Done reports whether the machine has reached a final state.
func (m *Machine[T]) Done() bool {
	if node, ok := m.nodes[m.State()]; ok {
		return node.Final
	}
	return false
}

// Stopped reports whether the machine was stopped or failed.
func (m *Machine[T]) Stopped() bool { return m.stopped }

// Err returns the failure cause, nil while healthy.
func (m *Machine[T]) Err() error { return m.err }

func (m *Machine[T]) drain() {
	defer func() { m.dispatching = false }()

	for len(m.queue) > 0 && m.err == nil {
		if m.pendingStop {
			break
		}
		if m.Done() {
			m.queue = nil
			break
		}
		ev := m.queue[0]
		m.queue = m.queue[1:]
		m.dispatch(ev)
	}
	if m.pendingStop && m.err == nil {
		m.pendingStop = false
		m.queue = nil
		m.stop()
	}
}

// dispatch handles one event: the first transition whose event matches and whose
// guard passes, searching from the active leaf up to the root.
func (m *Machine[T]) dispatch(ev Event) {
	et := ev.EventType()
	for i := len(m.activePath) - 1; i >= 0; i-- {
		node := m.nodes[m.activePath[i]]
		for _, t := range node.Transitions {
			if t.Event != et {
				continue
			}
			if t.Guard != nil && !t.Guard(m.ctx, ev) {
				continue
			}
			m.transition(t, ev)
			return
		}
	}
}

func (m *Machine[T]) transition(t Transition[T], ev Event) {
	if t.Target == StateNone {
		m.run(t.Actions, ev)
		return
	}

	target := m.resolve(t.Target, t.History)
	targetPath := m.nodes[target].Path

	// Find LCA
	lcaIndex := -1
	for i := 0; i < len(m.activePath) && i < len(targetPath); i++ {
		if m.activePath[i] != targetPath[i] {
			break
		}
		lcaIndex = i
	}
	if lcaIndex == len(m.activePath)-1 && lcaIndex == len(targetPath)-1 {
		// Self transition: leave and re-enter the leaf.
		lcaIndex--
	}

	// Exit phase: walk up from the current leaf to the LCA (exclusive)
	for i := len(m.activePath) - 1; i > lcaIndex; i-- {
		node := m.nodes[m.activePath[i]]
		if node.ParentID != StateNone {
			m.history[node.ParentID] = node.ID
		}
		if !m.run(node.OnExit, ev) {
			return
		}
		m.activePath = m.activePath[:i]
	}

	if !m.run(t.Actions, ev) {
		return
	}
	m.enter(targetPath, lcaIndex, ev)
}

// enter walks down from the LCA (exclusive) to the target leaf.
func (m *Machine[T]) enter(targetPath []StateID, lcaIndex int, ev Event) {
	for i := lcaIndex + 1; i < len(targetPath); i++ {
		node := m.nodes[targetPath[i]]
		m.activePath = append(m.activePath, node.ID)
		if !m.run(node.OnEnter, ev) {
			return
		}
	}
}

// resolve descends from id to the leaf that entering id activates.
func (m *Machine[T]) resolve(id StateID, history bool) StateID {
	node := m.nodes[id]
	if history {
		if child, ok := m.history[id]; ok {
			return m.resolve(child, false)
		}
	}
	for node.Initial != StateNone {
		node = m.nodes[node.Initial]
	}
	return node.ID
}

func (m *Machine[T]) run(actions []ActionFunc[T], ev Event) bool {
	for _, action := range actions {
		if err := action(m.ctx, ev); err != nil {
			m.Fail(err)
			return false
		}
	}
	return true
}

func (m *Machine[T]) stop() {
	m.exitAll()
	m.stopped = true
}

func (m *Machine[T]) exitAll() {
	path := m.activePath
	for i := len(path) - 1; i >= 0; i-- {
		node := m.nodes[path[i]]
		for _, action := range node.OnExit {
			// Exit errors while tearing down have nowhere to go but the error hook.
			if err := action(m.ctx, nil); err != nil && m.OnError != nil && m.err == nil {
				m.OnError(fmt.Errorf("fsm %s: exiting %s: %w", m.name, node.Name, err))
			}
		}
		m.activePath = path[:i]
	}
}
