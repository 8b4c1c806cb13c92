package globe

import (
	"fmt"
	"math"
	"time"

	"github.com/sudorandom/globe-paths/pkg/fsm"
	"github.com/sudorandom/globe-paths/pkg/geo"
	"github.com/sudorandom/globe-paths/pkg/loop"
)

const (
	pathRoot fsm.StateID = iota + 1
	pathIdle
	pathActive
	pathBuilding
	pathDestroying
	pathPaused
	pathDisposed
)

// interim bezier samples that become the final curve's control points
const (
	ctrlT1 = 0.15
	ctrlT2 = 0.85
)

// PathEntity animates one arc: it builds in, destroys out, then disposes of its mesh.
type PathEntity struct {
	ID string

	opts      Options
	loop      *loop.Loop
	machine   *fsm.Machine[*PathEntity]
	onDispose func(id string)

	curve         *geo.CubicBezier
	mesh          *Mesh
	speed         int
	renderCount   int
	deRenderCount int

	frame *loop.Handle
}

// NewPathEntity creates an idle entity. onDispose runs on the loop after the
// entity has released its mesh.
func NewPathEntity(id string, l *loop.Loop, opts Options, onDispose func(id string)) *PathEntity {
	e := &PathEntity{
		ID:        id,
		opts:      opts.withDefaults(),
		loop:      l,
		onDispose: onDispose,
	}
	e.machine = e.newMachine()
	return e
}

func (e *PathEntity) newMachine() *fsm.Machine[*PathEntity] {
	m := fsm.NewMachine("path "+e.ID, e)

	root := m.AddState(pathRoot, "path", fsm.StateNone)
	root.Initial = pathIdle
	m.AddState(pathIdle, "idle", pathRoot)
	active := m.AddState(pathActive, "active", pathRoot)
	active.Initial = pathBuilding
	building := m.AddState(pathBuilding, "building", pathActive)
	destroying := m.AddState(pathDestroying, "destroying", pathActive)
	m.AddState(pathPaused, "paused", pathRoot)
	disposed := m.AddState(pathDisposed, "disposed", pathRoot)
	disposed.Final = true

	building.OnEnter = append(building.OnEnter, (*PathEntity).startBuild)
	building.OnExit = append(building.OnExit, (*PathEntity).stopFrames)
	destroying.OnEnter = append(destroying.OnEnter, (*PathEntity).startDestroy)
	destroying.OnExit = append(destroying.OnExit, (*PathEntity).stopFrames)
	disposed.OnEnter = append(disposed.OnEnter, (*PathEntity).dispose)

	m.AddTransition(pathIdle, fsm.Transition[*PathEntity]{
		Event:   EvInit.EventType(),
		Target:  pathActive,
		Actions: []fsm.ActionFunc[*PathEntity]{(*PathEntity).init},
	})
	m.AddTransition(pathBuilding, fsm.Transition[*PathEntity]{
		Event:   EvUpdateBuild.EventType(),
		Actions: []fsm.ActionFunc[*PathEntity]{(*PathEntity).updateBuild},
	})
	m.AddTransition(pathBuilding, fsm.Transition[*PathEntity]{
		Event:  EvBuildDone.EventType(),
		Target: pathDestroying,
	})
	m.AddTransition(pathDestroying, fsm.Transition[*PathEntity]{
		Event:   EvUpdateDestroy.EventType(),
		Actions: []fsm.ActionFunc[*PathEntity]{(*PathEntity).updateDestroy},
	})
	m.AddTransition(pathDestroying, fsm.Transition[*PathEntity]{
		Event:  EvDestroyDone.EventType(),
		Target: pathDisposed,
	})
	m.AddTransition(pathActive, fsm.Transition[*PathEntity]{
		Event:  EvPause.EventType(),
		Target: pathPaused,
	})
	m.AddTransition(pathPaused, fsm.Transition[*PathEntity]{
		Event:   EvPlay.EventType(),
		Target:  pathActive,
		History: true,
	})

	m.SetInitial(pathRoot)
	return m
}

// Start enters the idle state.
func (e *PathEntity) Start() error { return e.machine.Start() }

// Send delivers an event to the entity's machine.
func (e *PathEntity) Send(ev fsm.Event) error { return e.machine.Send(ev) }

// Stop tears the entity down from whatever state it is in, releasing its mesh.
func (e *PathEntity) Stop() {
	e.machine.Stop()
	if e.mesh != nil {
		e.mesh.Release()
	}
}

func (e *PathEntity) Mesh() *Mesh { return e.mesh }
func (e *PathEntity) Curve() *geo.CubicBezier { return e.curve }
func (e *PathEntity) Speed() int { return e.speed }
func (e *PathEntity) RenderCount() int { return e.renderCount }
func (e *PathEntity) DeRenderCount() int { return e.deRenderCount }
func (e *PathEntity) State() string { return e.machine.StateName() }
func (e *PathEntity) Err() error { return e.machine.Err() }

// Disposed reports whether the entity finished its lifecycle.
func (e *PathEntity) Disposed() bool { return e.machine.Done() }

// init computes the arc. It runs once per entity; resuming from pause does not redo it.
func (e *PathEntity) init(ev fsm.Event) error {
	in, ok := ev.(InitPath)
	if !ok {
		return fmt.Errorf("path %s: init needs start and end, got %T", e.ID, ev)
	}
	radius := in.GlobeRadius

	start := geo.LatLongToPosition(in.Start.Lat, in.Start.Long, radius)
	end := geo.LatLongToPosition(in.End.Lat, in.End.Long, radius)
	distance := start.Distance(end)

	arcHeight := geo.Normalize(distance, 0, 2*radius, radius, e.opts.Arc.height(distance, radius))

	midLat, midLong := geo.Midpoint(in.Start.Lat, in.Start.Long, in.End.Lat, in.End.Long)
	mid := geo.LatLongToPosition(midLat, midLong, arcHeight)

	interim := geo.NewCubicBezier(start, mid, mid, end)
	scale := arcHeight / radius
	ctrl1 := interim.Point(ctrlT1).Mul(scale)
	ctrl2 := interim.Point(ctrlT2).Mul(scale)

	e.curve = geo.NewCubicBezier(start, ctrl1, ctrl2, end)
	length := e.curve.Length()

	tube := geo.NewTube(e.curve, int(math.Trunc(100*length)), e.opts.TubeRadius*radius, e.opts.RadialSegments)
	e.mesh = newMesh(tube, e.opts.PathColor)
	e.mesh.SetDrawRange(0, 0)

	e.speed = int(math.Ceil(18*length/9)) * 3
	return nil
}

func (e *PathEntity) startBuild(fsm.Event) error {
	e.frame = e.loop.OnFrame(func(time.Time) {
		if e.mesh == nil {
			e.machine.Fail(ErrMissingGeometry)
			return
		}
		next := e.renderCount + e.speed
		if next > e.mesh.IndexCount() {
			e.machine.Send(EvBuildDone)
			return
		}
		e.machine.Send(UpdateBuild{RenderCount: next})
	})
	return nil
}

func (e *PathEntity) startDestroy(fsm.Event) error {
	e.frame = e.loop.OnFrame(func(time.Time) {
		if e.mesh == nil {
			e.machine.Fail(ErrMissingGeometry)
			return
		}
		next := e.deRenderCount + e.speed
		if next > e.mesh.IndexCount() {
			e.machine.Send(EvDestroyDone)
			return
		}
		e.machine.Send(UpdateDestroy{DeRenderCount: next})
	})
	return nil
}

func (e *PathEntity) stopFrames(fsm.Event) error {
	e.frame.Stop()
	e.frame = nil
	return nil
}

func (e *PathEntity) updateBuild(ev fsm.Event) error {
	if e.mesh == nil {
		return ErrMissingGeometry
	}
	e.renderCount = ev.(UpdateBuild).RenderCount
	e.mesh.SetDrawRange(0, e.renderCount)
	return nil
}

func (e *PathEntity) updateDestroy(ev fsm.Event) error {
	if e.mesh == nil {
		return ErrMissingGeometry
	}
	e.deRenderCount = ev.(UpdateDestroy).DeRenderCount
	e.mesh.SetDrawRange(e.deRenderCount, Unbounded)
	return nil
}

func (e *PathEntity) dispose(fsm.Event) error {
	if e.mesh != nil {
		e.mesh.Release()
	}
	if e.onDispose != nil {
		id := e.ID
		e.loop.Post(func() { e.onDispose(id) })
	}
	return nil
}
