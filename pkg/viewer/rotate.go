package viewer

import (
	"fmt"

	"github.com/golang/geo/r2"

	"github.com/sudorandom/globe-paths/pkg/fsm"
)

// DefaultPanSpeed converts pointer pixels into radians of rotation.
const DefaultPanSpeed = 0.01

const (
	rotateRoot fsm.StateID = iota + 1
	rotateIdle
	rotateActive
)

const (
	EvRotateInit fsm.Signal = "INIT"
	EvPanEnd     fsm.Signal = "PAN_END"
	EvUpdate     fsm.Signal = "UPDATE"
	EvPanStart   fsm.Signal = "PAN_START"
	EvPanMove    fsm.Signal = "PAN_MOVE"
)

// PanStart is sent when the pointer goes down.
type PanStart struct{ At r2.Point }

func (PanStart) EventType() fsm.EventType { return EvPanStart.EventType() }

// PanMove is sent for every pointer position while it is held down.
type PanMove struct{ At r2.Point }

func (PanMove) EventType() fsm.EventType { return EvPanMove.EventType() }

// RotateControls turns horizontal drags into rotation around the globe's Y axis.
type RotateControls struct {
	PanSpeed float64

	machine  *fsm.Machine[*RotateControls]
	panStart r2.Point
	panDelta r2.Point
	rotation float64
}

// NewRotateControls returns started controls holding the given Y rotation in radians.
// They ignore input until Init.
func NewRotateControls(rotation float64) *RotateControls {
	rc := &RotateControls{PanSpeed: DefaultPanSpeed, rotation: rotation}
	m := fsm.NewMachine("rotateControls", rc)

	root := m.AddState(rotateRoot, "rotateControls", fsm.StateNone)
	root.Initial = rotateIdle
	m.AddState(rotateIdle, "idle", rotateRoot)
	m.AddState(rotateActive, "active", rotateRoot)

	m.AddTransition(rotateIdle, fsm.Transition[*RotateControls]{Event: EvRotateInit.EventType(), Target: rotateActive})
	m.AddTransition(rotateActive, fsm.Transition[*RotateControls]{
		Event:   EvPanStart.EventType(),
		Actions: []fsm.ActionFunc[*RotateControls]{(*RotateControls).onPanStart},
	})
	m.AddTransition(rotateActive, fsm.Transition[*RotateControls]{
		Event:   EvPanMove.EventType(),
		Actions: []fsm.ActionFunc[*RotateControls]{(*RotateControls).pan, (*RotateControls).update},
	})
	m.AddTransition(rotateActive, fsm.Transition[*RotateControls]{
		Event:   EvPanEnd.EventType(),
		Actions: []fsm.ActionFunc[*RotateControls]{(*RotateControls).onPanEnd},
	})
	m.AddTransition(rotateActive, fsm.Transition[*RotateControls]{
		Event:   EvUpdate.EventType(),
		Actions: []fsm.ActionFunc[*RotateControls]{(*RotateControls).update},
	})
	m.SetInitial(rotateRoot)

	if err := m.Start(); err != nil {
		panic(fmt.Sprintf("viewer: %v", err))
	}
	rc.machine = m
	return rc
}

func (rc *RotateControls) Init() error { return rc.machine.Send(EvRotateInit) }

func (rc *RotateControls) Send(ev fsm.Event) error { return rc.machine.Send(ev) }

// Rotation is the accumulated Y rotation in radians.
func (rc *RotateControls) Rotation() float64 { return rc.rotation }

func (rc *RotateControls) State() string { return rc.machine.StateName() }

func (rc *RotateControls) onPanStart(ev fsm.Event) error {
	rc.panStart = ev.(PanStart).At
	return nil
}

func (rc *RotateControls) pan(ev fsm.Event) error {
	end := ev.(PanMove).At
	rc.panDelta = end.Sub(rc.panStart).Mul(rc.PanSpeed)
	rc.panStart = end
	return nil
}

func (rc *RotateControls) onPanEnd(fsm.Event) error {
	rc.panStart = r2.Point{}
	return nil
}

func (rc *RotateControls) update(fsm.Event) error {
	rc.rotation += rc.panDelta.X
	rc.panDelta = r2.Point{}
	return nil
}
