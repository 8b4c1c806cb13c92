// Package globe owns the dotted globe's state: the dot field built from the map mask,
// the path spawner and the live flight paths it animates.
package globe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"

	"github.com/sudorandom/globe-paths/pkg/fsm"
	"github.com/sudorandom/globe-paths/pkg/geo"
	"github.com/sudorandom/globe-paths/pkg/loop"
)

const (
	globeRoot fsm.StateID = iota + 1
	globeIdle
	globeLoading
	globeActive
	globeLive
	globePaused
	globeFailed
)

// Status values reported by Globe.Status.
const (
	StatusIdle    = "idle"
	StatusLoading = "loading"
	StatusLive    = "live"
	StatusPaused  = "paused"
	StatusFailed  = "failed"
	StatusStopped = "stopped"
)

// MapSource yields the decoded world map mask.
type MapSource interface {
	LoadMap(ctx context.Context) (*geo.MapMask, error)
}

// MapSourceFunc adapts a function to MapSource.
type MapSourceFunc func(ctx context.Context) (*geo.MapMask, error)

func (f MapSourceFunc) LoadMap(ctx context.Context) (*geo.MapMask, error) { return f(ctx) }

// Globe is the orchestrator. All methods must be called on the loop goroutine.
type Globe struct {
	opts      Options
	loop      *loop.Loop
	machine   *fsm.Machine[*Globe]
	maps      MapSource
	locations LocationSource

	params  Params
	mask    *geo.MapMask
	dots    *DotField
	paths   []LivePath
	spawner *Spawner

	cancel  context.CancelFunc
	loadErr error
}

// New creates an idle globe.
func New(l *loop.Loop, maps MapSource, locations LocationSource, opts Options) *Globe {
	g := &Globe{
		opts:      opts.withDefaults(),
		loop:      l,
		maps:      maps,
		locations: locations,
		params:    DefaultParams(),
	}
	g.machine = g.newMachine()
	if err := g.machine.Start(); err != nil {
		panic(fmt.Sprintf("globe: %v", err))
	}
	return g
}

func (g *Globe) newMachine() *fsm.Machine[*Globe] {
	m := fsm.NewMachine("globe", g)

	root := m.AddState(globeRoot, "globe", fsm.StateNone)
	root.Initial = globeIdle
	m.AddState(globeIdle, "idle", globeRoot)

	loading := m.AddState(globeLoading, "loading", globeRoot)
	loading.OnEnter = append(loading.OnEnter, (*Globe).fetchMap)
	loading.OnExit = append(loading.OnExit, (*Globe).cancelFetch)

	active := m.AddState(globeActive, "active", globeRoot)
	active.Initial = globeLive
	active.OnEnter = append(active.OnEnter, (*Globe).startSpawner)
	active.OnExit = append(active.OnExit, (*Globe).stopSpawner)
	m.AddState(globeLive, "live", globeActive)
	m.AddState(globePaused, "paused", globeActive)

	failed := m.AddState(globeFailed, "failed", globeRoot)
	failed.OnEnter = append(failed.OnEnter, func(g *Globe, _ fsm.Event) error {
		log.Printf("[GLOBE] loading map failed: %v", g.loadErr)
		return nil
	})

	m.AddTransition(globeIdle, fsm.Transition[*Globe]{
		Event:  EvInit.EventType(),
		Target: globeLoading,
		Actions: []fsm.ActionFunc[*Globe]{func(g *Globe, ev fsm.Event) error {
			g.params = ev.(InitGlobe).Params
			return nil
		}},
	})
	m.AddTransition(globeLoading, fsm.Transition[*Globe]{
		Event: EvUpdateGlobe.EventType(),
		Actions: []fsm.ActionFunc[*Globe]{func(g *Globe, ev fsm.Event) error {
			g.params = g.params.withDots(ev.(UpdateGlobeDots))
			return nil
		}},
	})
	m.AddTransition(globeLoading, fsm.Transition[*Globe]{
		Event:   EvSetMapData.EventType(),
		Target:  globeActive,
		Actions: []fsm.ActionFunc[*Globe]{(*Globe).setMapData},
	})
	m.AddTransition(globeLoading, fsm.Transition[*Globe]{
		Event:  EvLoadFailed.EventType(),
		Target: globeFailed,
		Actions: []fsm.ActionFunc[*Globe]{func(g *Globe, ev fsm.Event) error {
			g.loadErr = ev.(LoadFailed).Err
			return nil
		}},
	})
	m.AddTransition(globeActive, fsm.Transition[*Globe]{
		Event:   EvUpdateGlobe.EventType(),
		Actions: []fsm.ActionFunc[*Globe]{(*Globe).rebuildDots},
	})
	m.AddTransition(globeActive, fsm.Transition[*Globe]{
		Event: EvUpdatePaths.EventType(),
		Actions: []fsm.ActionFunc[*Globe]{func(g *Globe, ev fsm.Event) error {
			g.paths = ev.(UpdatePaths).Paths
			return nil
		}},
	})
	m.AddTransition(globeLive, fsm.Transition[*Globe]{
		Event:   EvPause.EventType(),
		Target:  globePaused,
		Actions: []fsm.ActionFunc[*Globe]{(*Globe).forward},
	})
	m.AddTransition(globePaused, fsm.Transition[*Globe]{
		Event:   EvPlay.EventType(),
		Target:  globeActive,
		History: true,
		Actions: []fsm.ActionFunc[*Globe]{(*Globe).forward},
	})
	m.AddTransition(globeRoot, fsm.Transition[*Globe]{
		Event: EvUpdateMax.EventType(),
		Actions: []fsm.ActionFunc[*Globe]{func(g *Globe, ev fsm.Event) error {
			g.params.MaxPaths = ev.(UpdateMaxPaths).MaxPaths
			if g.spawner != nil {
				return g.spawner.Send(ev)
			}
			return nil
		}},
	})

	m.SetInitial(globeRoot)
	m.OnError = func(err error) { log.Printf("[GLOBE] %v", err) }
	return m
}

// Init starts loading with the given parameters.
func (g *Globe) Init(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return g.machine.Send(InitGlobe{Params: p})
}

// UpdateGlobeDots changes the dot parameters and rebuilds the dot field. Zero values
// keep the current setting. The merged set is validated before anything changes.
func (g *Globe) UpdateGlobeDots(dotDensity float64, rows int, globeRadius float64) error {
	ev := UpdateGlobeDots{DotDensity: dotDensity, Rows: rows, GlobeRadius: globeRadius}
	if err := g.params.withDots(ev).Validate(); err != nil {
		return err
	}
	return g.machine.Send(ev)
}

// UpdateMaxPaths changes how many paths may be live at once. Live paths are never evicted.
func (g *Globe) UpdateMaxPaths(n int) error {
	p := g.params
	p.MaxPaths = n
	if err := p.Validate(); err != nil {
		return err
	}
	return g.machine.Send(UpdateMaxPaths{MaxPaths: n})
}

func (g *Globe) Pause() error { return g.machine.Send(EvPause) }
func (g *Globe) Play() error { return g.machine.Send(EvPlay) }

// Stop tears the globe down: the spawner and all paths are stopped and the dot
// field released.
func (g *Globe) Stop() {
	g.machine.Stop()
	g.dots.Release()
	g.dots = nil
}

// DotField returns the current dot field, nil until the map has loaded.
func (g *Globe) DotField() *DotField { return g.dots }

// Paths returns the live paths in admission order.
func (g *Globe) Paths() []LivePath { return slices.Clone(g.paths) }

func (g *Globe) Params() Params { return g.params }

// Spawner returns the active spawner, nil outside the active state.
func (g *Globe) Spawner() *Spawner { return g.spawner }

// Status is one of the Status constants.
func (g *Globe) Status() string {
	switch {
	case g.machine.Err() != nil:
		return StatusFailed
	case g.machine.Stopped():
		return StatusStopped
	}
	switch g.machine.State() {
	case globeIdle:
		return StatusIdle
	case globeLoading:
		return StatusLoading
	case globeLive:
		return StatusLive
	case globePaused:
		return StatusPaused
	case globeFailed:
		return StatusFailed
	}
	return StatusStopped
}

// Err returns why the globe failed, if it did.
func (g *Globe) Err() error {
	if err := g.machine.Err(); err != nil {
		return err
	}
	return g.loadErr
}

// Snapshot is a point-in-time summary of the globe for hosts.
type Snapshot struct {
	Status string   `json:"status"`
	Params Params   `json:"params"`
	Dots   int      `json:"dots"`
	Paths  []string `json:"paths"`
	Error  string   `json:"error,omitempty"`
}

func (g *Globe) Snapshot() Snapshot {
	s := Snapshot{
		Status: g.Status(),
		Params: g.params,
		Paths:  make([]string, 0, len(g.paths)),
	}
	if g.dots != nil {
		s.Dots = g.dots.Count
	}
	for _, p := range g.paths {
		s.Paths = append(s.Paths, p.ID)
	}
	if err := g.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}

func (s Snapshot) String() string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (p Params) withDots(ev UpdateGlobeDots) Params {
	if ev.DotDensity != 0 {
		p.DotDensity = ev.DotDensity
	}
	if ev.Rows != 0 {
		p.Rows = ev.Rows
	}
	if ev.GlobeRadius != 0 {
		p.GlobeRadius = ev.GlobeRadius
	}
	return p
}

func (g *Globe) fetchMap(fsm.Event) error {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	maps := g.maps
	log.Printf("[GLOBE] loading map")
	g.loop.Go(func() func() {
		mask, err := maps.LoadMap(ctx)
		return func() {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				g.machine.Send(LoadFailed{Err: err})
				return
			}
			g.machine.Send(SetMapData{Mask: mask})
		}
	})
	return nil
}

func (g *Globe) cancelFetch(fsm.Event) error {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	return nil
}

func (g *Globe) setMapData(ev fsm.Event) error {
	g.mask = ev.(SetMapData).Mask
	return g.plot()
}

func (g *Globe) rebuildDots(ev fsm.Event) error {
	radius := g.params.GlobeRadius
	g.params = g.params.withDots(ev.(UpdateGlobeDots))
	if err := g.plot(); err != nil {
		return err
	}
	if g.params.GlobeRadius == radius || g.spawner == nil {
		return nil
	}
	return g.spawner.Send(UpdateGlobeRadius{GlobeRadius: g.params.GlobeRadius})
}

func (g *Globe) plot() error {
	dots, err := BuildDotField(g.params, g.opts.Dots, g.mask, g.dots)
	if err != nil {
		return err
	}
	g.dots = dots
	log.Printf("[GLOBE] plotted %d dots (density %v, rows %d)", dots.Count, g.params.DotDensity, g.params.Rows)
	return nil
}

func (g *Globe) startSpawner(fsm.Event) error {
	g.spawner = NewSpawner(g.loop, g.locations, g.params.GlobeRadius, g.params.MaxPaths, g.opts, func(paths []LivePath) {
		g.machine.Send(UpdatePaths{Paths: paths})
	})
	return g.spawner.Start()
}

func (g *Globe) stopSpawner(fsm.Event) error {
	if g.spawner != nil {
		g.spawner.Stop()
		g.spawner = nil
	}
	g.paths = nil
	return nil
}

func (g *Globe) forward(ev fsm.Event) error {
	if ev.EventType() == EvPause.EventType() {
		log.Printf("[GLOBE] paused")
	} else {
		log.Printf("[GLOBE] playing")
	}
	if g.spawner == nil {
		return nil
	}
	return g.spawner.Send(ev)
}
