// Package fsm is a small hierarchical state machine runtime with shallow history
// and run-to-completion event dispatch.
package fsm

// StateID is a unique identifier for a node
type StateID int

const StateNone StateID = 0

// EventType names an event. Transitions match on it.
type EventType string

// Event is anything that can be sent to a machine. Payload-carrying events are
// plain structs implementing EventType.
type Event interface {
	EventType() EventType
}

// Signal is an event without payload.
type Signal EventType

func (s Signal) EventType() EventType { return EventType(s) }

// Machine is the generic hierarchical state machine runtime.
// T is the context passed to actions and guards, usually the owner of the machine.
type Machine[T any] struct {
	name string
	ctx  T

	// Graph data, immutable once started
	nodes     map[StateID]*Node[T]
	initialID StateID
	compiled  bool

	// Runtime state
	activePath []StateID          // Root -> Leaf
	history    map[StateID]StateID // composite -> last active direct child
	queue      []Event

	started     bool
	stopped     bool
	dispatching bool
	pendingStop bool
	err         error

	// OnError is called once when the machine fails.
	OnError func(err error)
}

// Node represents a state in the hierarchy
type Node[T any] struct {
	ID       StateID
	Name     string
	ParentID StateID

	// Initial is the child entered when the node is the target of a transition.
	// Zero for leaves.
	Initial StateID

	// Final nodes end the machine once entered.
	Final bool

	// Pre-calculated path from Root to this node
	Path []StateID

	OnEnter []ActionFunc[T]
	OnExit  []ActionFunc[T]

	// Transitions in evaluation order
	Transitions []Transition[T]
}

// Transition defines a link between states. A zero Target makes the transition
// internal: its actions run without leaving the current state.
type Transition[T any] struct {
	Event   EventType
	Target  StateID
	History bool         // re-enter the last active child of Target
	Guard   GuardFunc[T] // nil = always true
	Actions []ActionFunc[T]
}

// GuardFunc returns true if the transition should occur
type GuardFunc[T any] func(ctx T, ev Event) bool

// ActionFunc executes a side effect. A returned error fails the machine.
// ev is nil for actions run by Start, Stop and Fail.
type ActionFunc[T any] func(ctx T, ev Event) error
