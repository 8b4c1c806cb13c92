package fsm

import "fmt"

// NewMachine creates a new machine. ctx is handed to every guard and action.
func NewMachine[T any](name string, ctx T) *Machine[T] {
	return &Machine[T]{
		name:    name,
		ctx:     ctx,
		nodes:   make(map[StateID]*Node[T]),
		history: make(map[StateID]StateID),
	}
}

// AddState adds a node to the machine. The returned node can be decorated with
// entry/exit actions and an initial child before the machine is started.
func (m *Machine[T]) AddState(id StateID, name string, parentID StateID) *Node[T] {
	if id == StateNone {
		panic(fmt.Sprintf("fsm %s: state %q uses reserved id 0", m.name, name))
	}
	if _, exists := m.nodes[id]; exists {
		panic(fmt.Sprintf("fsm %s: duplicate state id %d (%s)", m.name, id, name))
	}
	node := &Node[T]{
		ID:       id,
		Name:     name,
		ParentID: parentID,
	}
	m.nodes[id] = node
	m.compiled = false
	return node
}

// AddTransition adds a transition to a specific node
func (m *Machine[T]) AddTransition(sourceID StateID, t Transition[T]) {
	node, ok := m.nodes[sourceID]
	if !ok {
		panic(fmt.Sprintf("fsm %s: transition %q from unknown state %d", m.name, t.Event, sourceID))
	}
	node.Transitions = append(node.Transitions, t)
}

// SetInitial sets the state the machine enters on Start.
func (m *Machine[T]) SetInitial(id StateID) {
	m.initialID = id
}

// CompilePaths calculates the root path of every node and validates the graph.
// Start calls it when the graph changed since the last compile.
func (m *Machine[T]) CompilePaths() error {
	for id, node := range m.nodes {
		path := make([]StateID, 0, 4)
		curr := node

		// Walk up to root
		for {
			path = append(path, curr.ID)
			if curr.ParentID == StateNone {
				break
			}
			parent, ok := m.nodes[curr.ParentID]
			if !ok {
				return fmt.Errorf("fsm %s: node %d references missing parent %d", m.name, id, curr.ParentID)
			}
			if len(path) > len(m.nodes) {
				return fmt.Errorf("fsm %s: node %d is part of a parent cycle", m.name, id)
			}
			curr = parent
		}

		// Reverse to get [Root, ..., Leaf]
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		node.Path = path
	}

	for id, node := range m.nodes {
		if node.Initial != StateNone {
			child, ok := m.nodes[node.Initial]
			if !ok || child.ParentID != id {
				return fmt.Errorf("fsm %s: initial %d of %s is not a child", m.name, node.Initial, node.Name)
			}
		}
		for _, t := range node.Transitions {
			if t.Target == StateNone {
				continue
			}
			if _, ok := m.nodes[t.Target]; !ok {
				return fmt.Errorf("fsm %s: %s on %q targets unknown state %d", m.name, node.Name, t.Event, t.Target)
			}
		}
	}

	if _, ok := m.nodes[m.initialID]; !ok {
		return fmt.Errorf("fsm %s: initial state %d not found", m.name, m.initialID)
	}
	m.compiled = true
	return nil
}
