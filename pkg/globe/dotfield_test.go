package globe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/globe-paths/pkg/geo"
)

func opaqueMask(t *testing.T, w, h int) *geo.MapMask {
	t.Helper()
	pix := make([]uint8, w*h*4)
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 255
	}
	m, err := geo.NewMapMask(w, h, pix)
	require.NoError(t, err)
	return m
}

// expectedOpaqueCount counts dots for a mask that is visible everywhere. Each band
// places dots at x = 0, 1, ... while x < n, hence ceil, so each pole contributes one dot.
func expectedOpaqueCount(p Params) int {
	count := 0
	step := 180 / float64(p.Rows)
	for i := 0; i <= p.Rows; i++ {
		lat := -90 + float64(i)*step
		n := dotsForLat(lat, p.DotDensity, p.GlobeRadius)
		count += int(math.Ceil(n))
	}
	return count
}

func TestBuildDotFieldOpaqueMask(t *testing.T) {
	p := DefaultParams()
	field, err := BuildDotField(p, DefaultDotStyle(), opaqueMask(t, 360, 180), nil)
	require.NoError(t, err)

	assert.Equal(t, expectedOpaqueCount(p), field.Count)
	assert.Len(t, field.Transforms, field.Count)
	assert.InDelta(t, 1.0/150, field.DotRadius, 1e-12)
	assert.Equal(t, 5, field.Segments)
	assert.Equal(t, Magenta, field.Color)
	assert.Equal(t, 3, field.RenderOrder)

	// The equator alone holds ceil(2*pi*50) dots.
	assert.Greater(t, field.Count, 315)
}

func TestBuildDotFieldPlacesDotsOnSurface(t *testing.T) {
	p := Params{DotDensity: 5, Rows: 20, GlobeRadius: 2, MaxPaths: 1}
	field, err := BuildDotField(p, DefaultDotStyle(), opaqueMask(t, 36, 18), nil)
	require.NoError(t, err)
	require.NotZero(t, field.Count)

	for i := 0; i < field.Count; i++ {
		assert.InDelta(t, 2, field.Position(i).Length(), 1e-4)
	}
}

func TestBuildDotFieldSkipsTransparentPixels(t *testing.T) {
	mask := opaqueMask(t, 36, 18)
	// Clear the southern hemisphere.
	for y := 9; y < 18; y++ {
		for x := 0; x < 36; x++ {
			mask.Pix[(x+y*36)*4+3] = 0
		}
	}
	p := Params{DotDensity: 5, Rows: 20, GlobeRadius: 1, MaxPaths: 1}
	field, err := BuildDotField(p, DefaultDotStyle(), mask, nil)
	require.NoError(t, err)

	require.NotZero(t, field.Count)
	assert.Less(t, field.Count, expectedOpaqueCount(p))
	for i := 0; i < field.Count; i++ {
		assert.Greater(t, field.Position(i).Y, float32(-1e-4))
	}
}

func TestBuildDotFieldIsIdempotent(t *testing.T) {
	mask := opaqueMask(t, 90, 45)
	p := Params{DotDensity: 20, Rows: 60, GlobeRadius: 1, MaxPaths: 1}

	first, err := BuildDotField(p, DefaultDotStyle(), mask, nil)
	require.NoError(t, err)
	count := first.Count

	second, err := BuildDotField(p, DefaultDotStyle(), mask, first)
	require.NoError(t, err)
	assert.Equal(t, count, second.Count)
	assert.True(t, first.Released())
	assert.False(t, second.Released())
}

func TestBuildDotFieldMonotonic(t *testing.T) {
	mask := opaqueMask(t, 90, 45)

	last := 0
	for _, density := range []float64{1, 5, 10, 25, 50} {
		f, err := BuildDotField(Params{DotDensity: density, Rows: 40, GlobeRadius: 1}, DefaultDotStyle(), mask, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f.Count, last, "density %v", density)
		last = f.Count
	}

	last = 0
	for _, rows := range []int{10, 20, 40, 80} {
		f, err := BuildDotField(Params{DotDensity: 10, Rows: rows, GlobeRadius: 1}, DefaultDotStyle(), mask, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f.Count, last, "rows %d", rows)
		last = f.Count
	}
}

func TestBuildDotFieldMissingMap(t *testing.T) {
	prev, err := BuildDotField(DefaultParams(), DefaultDotStyle(), opaqueMask(t, 36, 18), nil)
	require.NoError(t, err)

	_, err = BuildDotField(DefaultParams(), DefaultDotStyle(), nil, prev)
	assert.ErrorIs(t, err, ErrMissingMapData)

	_, err = BuildDotField(DefaultParams(), DefaultDotStyle(), &geo.MapMask{Width: 1, Height: 1}, prev)
	assert.ErrorIs(t, err, ErrMissingMapData)

	assert.False(t, prev.Released())
}

func TestDotFieldRelease(t *testing.T) {
	field, err := BuildDotField(DefaultParams(), DefaultDotStyle(), opaqueMask(t, 36, 18), nil)
	require.NoError(t, err)

	calls := 0
	field.OnRelease(func() { calls++ })
	field.Release()
	field.Release()

	assert.Equal(t, 1, calls)
	assert.Nil(t, field.Transforms)
}

func TestDotFieldMinimumSegments(t *testing.T) {
	style := DefaultDotStyle()
	style.Segments = 2
	field, err := BuildDotField(DefaultParams(), style, opaqueMask(t, 36, 18), nil)
	require.NoError(t, err)
	assert.Equal(t, MinDotSegments, field.Segments)
}
