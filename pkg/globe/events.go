package globe

import (
	"errors"

	"github.com/sudorandom/globe-paths/pkg/fsm"
	"github.com/sudorandom/globe-paths/pkg/geo"
)

var (
	ErrMissingMapData     = errors.New("map data not loaded")
	ErrMissingGeometry    = errors.New("path geometry not initialized")
	ErrMissingPathPool    = errors.New("path pool not built")
	ErrNotEnoughLocations = errors.New("need at least two locations to build paths")
	ErrInvalidParams      = errors.New("invalid globe parameters")
)

// Signals without payload.
const (
	EvPause         fsm.Signal = "PAUSE"
	EvPlay          fsm.Signal = "PLAY"
	EvBuildDone     fsm.Signal = "BUILD_DONE"
	EvDestroyDone   fsm.Signal = "DESTROY_DONE"
	EvUpdatePaths   fsm.Signal = "UPDATE_PATHS"
	EvUpdateGlobe   fsm.Signal = "UPDATE_GLOBE_DOTS"
	EvInit          fsm.Signal = "INIT"
	EvSetMapData    fsm.Signal = "SET_MAP_DATA"
	EvSetData       fsm.Signal = "SET_DATA"
	EvLoadFailed    fsm.Signal = "LOAD_FAILED"
	EvSpawnPath     fsm.Signal = "SPAWN_PATH"
	EvDisposePath   fsm.Signal = "DISPOSE_PATH"
	EvUpdateMax     fsm.Signal = "UPDATE_MAX_PATHS"
	EvUpdateRadius  fsm.Signal = "UPDATE_GLOBE_RADIUS"
	EvUpdateBuild   fsm.Signal = "UPDATE_BUILD"
	EvUpdateDestroy fsm.Signal = "UPDATE_DESTROY"
)

// InitGlobe starts the orchestrator with its first parameter set.
type InitGlobe struct{ Params Params }

func (InitGlobe) EventType() fsm.EventType { return EvInit.EventType() }

// SetMapData delivers the decoded map mask.
type SetMapData struct{ Mask *geo.MapMask }

func (SetMapData) EventType() fsm.EventType { return EvSetMapData.EventType() }

// LoadFailed reports an asset fetch that did not succeed.
type LoadFailed struct{ Err error }

func (LoadFailed) EventType() fsm.EventType { return EvLoadFailed.EventType() }

// UpdateGlobeDots replaces the dot parameters. Zero fields keep their current value.
type UpdateGlobeDots struct {
	DotDensity  float64
	Rows        int
	GlobeRadius float64
}

func (UpdateGlobeDots) EventType() fsm.EventType { return EvUpdateGlobe.EventType() }

// UpdatePaths carries the spawner's live list upward.
type UpdatePaths struct{ Paths []LivePath }

func (UpdatePaths) EventType() fsm.EventType { return EvUpdatePaths.EventType() }

type UpdateMaxPaths struct{ MaxPaths int }

func (UpdateMaxPaths) EventType() fsm.EventType { return EvUpdateMax.EventType() }

// UpdateGlobeRadius tells the spawner which radius to build new paths on.
type UpdateGlobeRadius struct{ GlobeRadius float64 }

func (UpdateGlobeRadius) EventType() fsm.EventType { return EvUpdateRadius.EventType() }

// SetData delivers the location dataset to the spawner.
type SetData struct{ Locations []geo.GeoLocation }

func (SetData) EventType() fsm.EventType { return EvSetData.EventType() }

type SpawnPath struct{ Spec PathSpec }

func (SpawnPath) EventType() fsm.EventType { return EvSpawnPath.EventType() }

type DisposePath struct{ ID string }

func (DisposePath) EventType() fsm.EventType { return EvDisposePath.EventType() }

// InitPath computes a path's geometry.
type InitPath struct {
	Start, End  geo.GeoLocation
	GlobeRadius float64
}

func (InitPath) EventType() fsm.EventType { return EvInit.EventType() }

type UpdateBuild struct{ RenderCount int }

func (UpdateBuild) EventType() fsm.EventType { return EvUpdateBuild.EventType() }

type UpdateDestroy struct{ DeRenderCount int }

func (UpdateDestroy) EventType() fsm.EventType { return EvUpdateDestroy.EventType() }
