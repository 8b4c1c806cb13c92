package globe

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/globe-paths/pkg/geo"
	"github.com/sudorandom/globe-paths/pkg/loop"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const frame = 16 * time.Millisecond

var (
	london   = geo.GeoLocation{Country: "United Kingdom", City: "London", Lat: 51.5072, Long: -0.1276}
	newYork  = geo.GeoLocation{Country: "United States", City: "New York", Lat: 40.7128, Long: -74.006}
	tokyo    = geo.GeoLocation{Country: "Japan", City: "Tokyo", Lat: 35.6762, Long: 139.6503}
	sydney   = geo.GeoLocation{Country: "Australia", City: "Sydney", Lat: -33.8688, Long: 151.2093}
	saoPaulo = geo.GeoLocation{Country: "Brazil", City: "Sao Paulo", Lat: -23.5558, Long: -46.6396}
	cairo    = geo.GeoLocation{Country: "Egypt", City: "Cairo", Lat: 30.0444, Long: 31.2357}
)

var testLocations = []geo.GeoLocation{london, newYork, tokyo, sydney, saoPaulo, cairo}

func startPath(t *testing.T, l *loop.Loop, from, to geo.GeoLocation, onDispose func(string)) *PathEntity {
	t.Helper()
	e := NewPathEntity(PathID(from, to), l, DefaultOptions(), onDispose)
	require.NoError(t, e.Start())
	assert.Equal(t, "idle", e.State())
	require.NoError(t, e.Send(InitPath{Start: from, End: to, GlobeRadius: 1}))
	return e
}

func TestPathEntityInit(t *testing.T) {
	l := loop.New(epoch)
	e := startPath(t, l, london, newYork, nil)

	assert.Equal(t, "building", e.State())
	require.NotNil(t, e.Mesh())

	length := e.Curve().Length()
	assert.Equal(t, int(math.Ceil(18*length/9))*3, e.Speed())
	assert.Equal(t, int(math.Trunc(100*length)), e.Mesh().Tube.TubularSegments)
	assert.Equal(t, 3, e.Mesh().Tube.RadialSegments)
	assert.Equal(t, int(math.Trunc(100*length))*3*6, e.Mesh().IndexCount())
	assert.Equal(t, DrawRange{}, e.Mesh().DrawRange())

	start := geo.LatLongToPosition(london.Lat, london.Long, 1)
	end := geo.LatLongToPosition(newYork.Lat, newYork.Long, 1)
	assert.InDelta(t, 0, e.Curve().V0.Distance(start), 1e-12)
	assert.InDelta(t, 0, e.Curve().V3.Distance(end), 1e-12)

	// The arc rises off the surface between its ends.
	assert.Greater(t, e.Curve().PointAt(0.5).Norm(), 1.0)
}

func TestPathEntityArcHeights(t *testing.T) {
	l := loop.New(epoch)
	short := startPath(t, l, london, cairo, nil)
	long := startPath(t, l, london, sydney, nil)

	assert.Greater(t, long.Curve().PointAt(0.5).Norm(), short.Curve().PointAt(0.5).Norm())
}

func TestPathEntityLifecycle(t *testing.T) {
	l := loop.New(epoch)
	var disposedID string
	e := startPath(t, l, london, newYork, func(id string) { disposedID = id })
	total := e.Mesh().IndexCount()

	last := 0
	for e.State() == "building" {
		l.Advance(frame)
		if e.State() != "building" {
			break
		}
		require.Equal(t, last+e.Speed(), e.RenderCount())
		require.LessOrEqual(t, e.RenderCount(), total)
		assert.Equal(t, DrawRange{Start: 0, Count: e.RenderCount()}, e.Mesh().DrawRange())
		last = e.RenderCount()
	}
	require.Equal(t, "destroying", e.State())
	assert.Greater(t, last+e.Speed(), total)

	last = 0
	for e.State() == "destroying" {
		l.Advance(frame)
		if e.State() != "destroying" {
			break
		}
		require.Equal(t, last+e.Speed(), e.DeRenderCount())
		require.LessOrEqual(t, e.DeRenderCount(), total)
		assert.Equal(t, DrawRange{Start: e.DeRenderCount(), Count: Unbounded}, e.Mesh().DrawRange())
		last = e.DeRenderCount()
	}

	assert.True(t, e.Disposed())
	assert.True(t, e.Mesh().Released())
	assert.Equal(t, e.ID, disposedID)

	_, frames := l.Active()
	assert.Zero(t, frames)
}

func TestPathEntityPauseResume(t *testing.T) {
	l := loop.New(epoch)
	e := startPath(t, l, london, tokyo, nil)

	for i := 0; i < 3; i++ {
		l.Advance(frame)
	}
	paused := e.RenderCount()
	require.Equal(t, 3*e.Speed(), paused)

	require.NoError(t, e.Send(EvPause))
	assert.Equal(t, "paused", e.State())
	for i := 0; i < 10; i++ {
		l.Advance(frame)
	}
	assert.Equal(t, paused, e.RenderCount())
	_, frames := l.Active()
	assert.Zero(t, frames)

	require.NoError(t, e.Send(EvPlay))
	assert.Equal(t, "building", e.State())
	l.Advance(frame)
	assert.Equal(t, paused+e.Speed(), e.RenderCount())
}

func TestPathEntityResumesDestroying(t *testing.T) {
	l := loop.New(epoch)
	e := startPath(t, l, london, newYork, nil)
	for e.State() == "building" {
		l.Advance(frame)
	}
	l.Advance(frame)
	deRender := e.DeRenderCount()
	require.Positive(t, deRender)

	require.NoError(t, e.Send(EvPause))
	require.NoError(t, e.Send(EvPlay))
	assert.Equal(t, "destroying", e.State())
	assert.Equal(t, deRender, e.DeRenderCount())
}

func TestPathEntityMissingGeometry(t *testing.T) {
	l := loop.New(epoch)
	e := startPath(t, l, london, newYork, nil)
	e.mesh = nil

	l.Advance(frame)
	assert.ErrorIs(t, e.Err(), ErrMissingGeometry)
	_, frames := l.Active()
	assert.Zero(t, frames)
}

func TestPathEntityStop(t *testing.T) {
	l := loop.New(epoch)
	disposed := false
	e := startPath(t, l, london, newYork, func(string) { disposed = true })
	l.Advance(frame)

	e.Stop()
	assert.True(t, e.Mesh().Released())
	assert.Nil(t, e.Mesh().VisibleIndices())
	_, frames := l.Active()
	assert.Zero(t, frames)

	l.Advance(frame)
	assert.False(t, disposed)
}

func TestMeshVisibleIndices(t *testing.T) {
	tube := geo.NewTube(geo.NewCubicBezier(geo.LatLongToPosition(0, 0, 1), geo.LatLongToPosition(0, 10, 1.2),
		geo.LatLongToPosition(0, 20, 1.2), geo.LatLongToPosition(0, 30, 1)), 10, 0.01, 3)
	m := newMesh(tube, Magenta)

	m.SetDrawRange(0, 0)
	assert.Empty(t, m.VisibleIndices())

	m.SetDrawRange(0, 20)
	assert.Len(t, m.VisibleIndices(), 18)

	m.SetDrawRange(30, Unbounded)
	assert.Len(t, m.VisibleIndices(), m.IndexCount()-30)

	m.SetDrawRange(m.IndexCount()+5, Unbounded)
	assert.Empty(t, m.VisibleIndices())
}

func TestBuildPathPool(t *testing.T) {
	pool, err := BuildPathPool(testLocations, 200, newRand(7))
	require.NoError(t, err)
	require.Len(t, pool, 200)
	for _, spec := range pool {
		assert.NotEqual(t, spec.Start, spec.End)
		assert.Equal(t, PathID(spec.Start, spec.End), spec.ID)
	}

	again, err := BuildPathPool(testLocations, 200, newRand(7))
	require.NoError(t, err)
	assert.Equal(t, pool, again)

	_, err = BuildPathPool(testLocations[:1], 10, newRand(7))
	assert.ErrorIs(t, err, ErrNotEnoughLocations)

	assert.Equal(t, "London, United Kingdom To Tokyo, Japan", PathID(london, tokyo))
}
