package globe

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"time"

	"github.com/sudorandom/globe-paths/pkg/fsm"
	"github.com/sudorandom/globe-paths/pkg/geo"
	"github.com/sudorandom/globe-paths/pkg/loop"
)

const (
	spawnerRoot fsm.StateID = iota + 1
	spawnerLoading
	spawnerActive
	spawnerLive
	spawnerPaused
	spawnerFailed
)

// LocationSource yields the dataset paths are drawn between.
type LocationSource interface {
	LoadLocations(ctx context.Context) ([]geo.GeoLocation, error)
}

// LocationSourceFunc adapts a function to LocationSource.
type LocationSourceFunc func(ctx context.Context) ([]geo.GeoLocation, error)

func (f LocationSourceFunc) LoadLocations(ctx context.Context) ([]geo.GeoLocation, error) {
	return f(ctx)
}

// LivePath is a path currently on the globe. The renderer reads the entity's mesh.
type LivePath struct {
	ID     string
	Entity *PathEntity
}

// Spawner keeps up to maxPaths paths alive, admitting candidates from its pool in
// round-robin order.
type Spawner struct {
	opts     Options
	loop     *loop.Loop
	machine  *fsm.Machine[*Spawner]
	source   LocationSource
	onUpdate func([]LivePath)

	radius   float64
	maxPaths int

	pool   []PathSpec
	cursor int
	live   []LivePath

	ticker  *loop.Handle
	cancel  context.CancelFunc
	loadErr error

	// pausedEarly records a PAUSE received while still loading.
	pausedEarly bool
}

// NewSpawner creates a spawner. onUpdate receives the live list after every admission
// and eviction.
func NewSpawner(l *loop.Loop, source LocationSource, radius float64, maxPaths int, opts Options, onUpdate func([]LivePath)) *Spawner {
	s := &Spawner{
		opts:     opts.withDefaults(),
		loop:     l,
		source:   source,
		onUpdate: onUpdate,
		radius:   radius,
		maxPaths: maxPaths,
	}
	s.machine = s.newMachine()
	return s
}

func (s *Spawner) newMachine() *fsm.Machine[*Spawner] {
	m := fsm.NewMachine("spawner", s)

	root := m.AddState(spawnerRoot, "spawner", fsm.StateNone)
	root.Initial = spawnerLoading
	root.OnExit = append(root.OnExit, (*Spawner).teardown)

	loading := m.AddState(spawnerLoading, "loading", spawnerRoot)
	loading.OnEnter = append(loading.OnEnter, (*Spawner).fetch)
	loading.OnExit = append(loading.OnExit, (*Spawner).cancelFetch)

	active := m.AddState(spawnerActive, "active", spawnerRoot)
	active.Initial = spawnerLive
	live := m.AddState(spawnerLive, "live", spawnerActive)
	live.OnEnter = append(live.OnEnter, (*Spawner).startTicker)
	live.OnExit = append(live.OnExit, (*Spawner).stopTicker)
	m.AddState(spawnerPaused, "paused", spawnerActive)

	failed := m.AddState(spawnerFailed, "failed", spawnerRoot)
	failed.OnEnter = append(failed.OnEnter, (*Spawner).logFailure)

	m.AddTransition(spawnerLoading, fsm.Transition[*Spawner]{
		Event:   EvSetData.EventType(),
		Target:  spawnerPaused,
		Guard:   func(s *Spawner, ev fsm.Event) bool { return s.pausedEarly && enoughLocations(s, ev) },
		Actions: []fsm.ActionFunc[*Spawner]{(*Spawner).setData},
	})
	m.AddTransition(spawnerLoading, fsm.Transition[*Spawner]{
		Event:   EvSetData.EventType(),
		Target:  spawnerActive,
		Guard:   enoughLocations,
		Actions: []fsm.ActionFunc[*Spawner]{(*Spawner).setData},
	})
	m.AddTransition(spawnerLoading, fsm.Transition[*Spawner]{
		Event:  EvSetData.EventType(),
		Target: spawnerFailed,
		Actions: []fsm.ActionFunc[*Spawner]{func(s *Spawner, ev fsm.Event) error {
			s.loadErr = fmt.Errorf("%w: have %d", ErrNotEnoughLocations, len(ev.(SetData).Locations))
			return nil
		}},
	})
	m.AddTransition(spawnerLoading, fsm.Transition[*Spawner]{
		Event:   EvLoadFailed.EventType(),
		Target:  spawnerFailed,
		Actions: []fsm.ActionFunc[*Spawner]{(*Spawner).recordLoadError},
	})
	m.AddTransition(spawnerLoading, fsm.Transition[*Spawner]{
		Event: EvPause.EventType(),
		Actions: []fsm.ActionFunc[*Spawner]{func(s *Spawner, _ fsm.Event) error {
			s.pausedEarly = true
			return nil
		}},
	})
	m.AddTransition(spawnerLoading, fsm.Transition[*Spawner]{
		Event: EvPlay.EventType(),
		Actions: []fsm.ActionFunc[*Spawner]{func(s *Spawner, _ fsm.Event) error {
			s.pausedEarly = false
			return nil
		}},
	})
	m.AddTransition(spawnerLive, fsm.Transition[*Spawner]{
		Event:   EvSpawnPath.EventType(),
		Guard:   func(s *Spawner, ev fsm.Event) bool { return s.admissible(ev.(SpawnPath).Spec) },
		Actions: []fsm.ActionFunc[*Spawner]{(*Spawner).spawn},
	})
	m.AddTransition(spawnerLive, fsm.Transition[*Spawner]{
		Event:   EvPause.EventType(),
		Target:  spawnerPaused,
		Actions: []fsm.ActionFunc[*Spawner]{(*Spawner).forward},
	})
	m.AddTransition(spawnerPaused, fsm.Transition[*Spawner]{
		Event:   EvPlay.EventType(),
		Target:  spawnerActive,
		History: true,
		Actions: []fsm.ActionFunc[*Spawner]{(*Spawner).forward},
	})
	m.AddTransition(spawnerActive, fsm.Transition[*Spawner]{
		Event:   EvDisposePath.EventType(),
		Actions: []fsm.ActionFunc[*Spawner]{(*Spawner).evict},
	})
	m.AddTransition(spawnerRoot, fsm.Transition[*Spawner]{
		Event: EvUpdateMax.EventType(),
		Actions: []fsm.ActionFunc[*Spawner]{func(s *Spawner, ev fsm.Event) error {
			s.maxPaths = ev.(UpdateMaxPaths).MaxPaths
			return nil
		}},
	})
	m.AddTransition(spawnerRoot, fsm.Transition[*Spawner]{
		Event: EvUpdateRadius.EventType(),
		Actions: []fsm.ActionFunc[*Spawner]{func(s *Spawner, ev fsm.Event) error {
			s.radius = ev.(UpdateGlobeRadius).GlobeRadius
			return nil
		}},
	})

	m.SetInitial(spawnerRoot)
	m.OnError = func(err error) { log.Printf("[SPAWNER] %v", err) }
	return m
}

// Start begins loading the location dataset.
func (s *Spawner) Start() error { return s.machine.Start() }

func (s *Spawner) Send(ev fsm.Event) error { return s.machine.Send(ev) }

// Stop tears down the spawner and every live path.
func (s *Spawner) Stop() { s.machine.Stop() }

func (s *Spawner) Pause() error { return s.machine.Send(EvPause) }
func (s *Spawner) Play() error { return s.machine.Send(EvPlay) }

// Live returns a copy of the live list in admission order.
func (s *Spawner) Live() []LivePath { return slices.Clone(s.live) }

func (s *Spawner) Pool() []PathSpec { return s.pool }
func (s *Spawner) Cursor() int { return s.cursor }
func (s *Spawner) MaxPaths() int { return s.maxPaths }

// Radius is the globe radius new paths are built on. Live paths keep theirs.
func (s *Spawner) Radius() float64 { return s.radius }
func (s *Spawner) State() string { return s.machine.StateName() }

// Err returns why the spawner stopped working, if it did.
func (s *Spawner) Err() error {
	if err := s.machine.Err(); err != nil {
		return err
	}
	return s.loadErr
}

func enoughLocations(_ *Spawner, ev fsm.Event) bool {
	return len(ev.(SetData).Locations) >= 2
}

func (s *Spawner) fetch(fsm.Event) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	source := s.source
	s.loop.Go(func() func() {
		locations, err := source.LoadLocations(ctx)
		return func() {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.machine.Send(LoadFailed{Err: err})
				return
			}
			s.machine.Send(SetData{Locations: locations})
		}
	})
	return nil
}

func (s *Spawner) cancelFetch(fsm.Event) error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *Spawner) setData(ev fsm.Event) error {
	locations := ev.(SetData).Locations
	pool, err := BuildPathPool(locations, s.opts.PoolSize, rand.New(rand.NewSource(s.opts.Seed)))
	if err != nil {
		return err
	}
	s.pool = pool
	s.cursor = 0
	log.Printf("[SPAWNER] built pool of %d paths from %d locations", len(pool), len(locations))
	return nil
}

func (s *Spawner) recordLoadError(ev fsm.Event) error {
	s.loadErr = ev.(LoadFailed).Err
	return nil
}

func (s *Spawner) logFailure(fsm.Event) error {
	log.Printf("[SPAWNER] loading locations failed: %v", s.loadErr)
	return nil
}

func (s *Spawner) startTicker(fsm.Event) error {
	if s.pool == nil {
		return ErrMissingPathPool
	}
	s.ticker = s.loop.Every(s.opts.SpawnInterval, s.tick)
	return nil
}

func (s *Spawner) stopTicker(fsm.Event) error {
	s.ticker.Stop()
	s.ticker = nil
	return nil
}

// tick offers the next pool candidate. Full or duplicate candidates are skipped
// and the cursor moves on regardless.
func (s *Spawner) tick(time.Time) {
	if len(s.pool) == 0 {
		s.machine.Fail(ErrMissingPathPool)
		return
	}
	spec := s.pool[s.cursor]
	s.cursor = (s.cursor + 1) % len(s.pool)
	if s.admissible(spec) {
		s.machine.Send(SpawnPath{Spec: spec})
	}
}

func (s *Spawner) admissible(spec PathSpec) bool {
	if len(s.live) >= s.maxPaths {
		return false
	}
	return !slices.ContainsFunc(s.live, func(p LivePath) bool { return p.ID == spec.ID })
}

func (s *Spawner) spawn(ev fsm.Event) error {
	spec := ev.(SpawnPath).Spec
	entity := NewPathEntity(spec.ID, s.loop, s.opts, s.disposed)
	if err := entity.Start(); err != nil {
		return err
	}
	if err := entity.Send(InitPath{Start: spec.Start, End: spec.End, GlobeRadius: s.radius}); err != nil {
		log.Printf("[SPAWNER] dropping path %q: %v", spec.ID, err)
		entity.Stop()
		return nil
	}
	s.live = append(s.live, LivePath{ID: spec.ID, Entity: entity})
	s.report()
	return nil
}

// disposed is handed to every entity and runs on the loop once it has finished.
func (s *Spawner) disposed(id string) {
	s.machine.Send(DisposePath{ID: id})
}

func (s *Spawner) evict(ev fsm.Event) error {
	id := ev.(DisposePath).ID
	i := slices.IndexFunc(s.live, func(p LivePath) bool { return p.ID == id })
	if i < 0 {
		return nil
	}
	s.live[i].Entity.Stop()
	s.live = slices.Delete(s.live, i, i+1)
	s.report()
	return nil
}

func (s *Spawner) forward(ev fsm.Event) error {
	for _, p := range s.live {
		if err := p.Entity.Send(ev); err != nil {
			log.Printf("[SPAWNER] path %q: %v", p.ID, err)
		}
	}
	return nil
}

func (s *Spawner) teardown(fsm.Event) error {
	for _, p := range s.live {
		p.Entity.Stop()
	}
	s.live = nil
	return nil
}

func (s *Spawner) report() {
	if s.onUpdate != nil {
		s.onUpdate(s.Live())
	}
}
