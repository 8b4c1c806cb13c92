package globe

import (
	"image/color"
	"math"

	"cogentcore.org/core/math32"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"

	"github.com/sudorandom/globe-paths/pkg/geo"
)

// lookAtLift is how far beyond the surface a dot's look-at target sits.
const lookAtLift = 5

// DotField is one instanced set of dots covering the visible parts of the map.
type DotField struct {
	// Transforms holds one model matrix per dot, translation in elements 12-14.
	Transforms  []math32.Matrix4
	DotRadius   float64
	Segments    int
	Color       color.RGBA
	RenderOrder int
	Count       int

	released  bool
	onRelease []func()
}

// Position returns the centre of dot i.
func (f *DotField) Position(i int) math32.Vector3 {
	m := &f.Transforms[i]
	return math32.Vec3(m[12], m[13], m[14])
}

// OnRelease registers fn to run when the field is released, so a renderer can free
// whatever it uploaded for it.
func (f *DotField) OnRelease(fn func()) {
	f.onRelease = append(f.onRelease, fn)
}

// Release frees the field. It is safe to call more than once.
func (f *DotField) Release() {
	if f == nil || f.released {
		return
	}
	f.released = true
	f.Transforms = nil
	for _, fn := range f.onRelease {
		fn()
	}
	f.onRelease = nil
}

func (f *DotField) Released() bool { return f.released }

// dotsForLat is the fractional number of dots that fit around the latitude band.
func dotsForLat(lat, density, radius float64) float64 {
	bandRadius := math.Cos((s1.Angle(math.Abs(lat)) * s1.Degree).Radians()) * radius
	return 2 * math.Pi * bandRadius * density
}

// BuildDotField places a dot at every opaque mask position on the globe. prev, when
// not nil, is released before the new field is returned; on a precondition error it
// is left untouched.
func BuildDotField(p Params, style DotStyle, mask *geo.MapMask, prev *DotField) (*DotField, error) {
	if mask == nil || mask.Pix == nil {
		return nil, ErrMissingMapData
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	prev.Release()

	style.Segments = max(style.Segments, MinDotSegments)
	field := &DotField{
		DotRadius:   p.GlobeRadius / style.Size,
		Segments:    style.Segments,
		Color:       style.Color,
		RenderOrder: style.RenderOrder,
	}

	step := 180 / float64(p.Rows)
	for i := 0; i <= p.Rows; i++ {
		lat := -90 + float64(i)*step
		n := dotsForLat(lat, p.DotDensity, p.GlobeRadius)
		for x := 0; float64(x) < n; x++ {
			long := -180 + float64(x)*360/n
			if !mask.IsDotVisible(lat, long) {
				continue
			}
			field.Transforms = append(field.Transforms, dotTransform(lat, long, p.GlobeRadius))
		}
	}
	field.Count = len(field.Transforms)
	return field, nil
}

var (
	yUp = math32.Vec3(0, 1, 0)
	zUp = math32.Vec3(0, 0, 1)
)

// dotTransform places a dot on the surface facing away from the centre.
func dotTransform(lat, long, radius float64) math32.Matrix4 {
	pos := toVec3(geo.LatLongToPosition(lat, long, radius))
	target := toVec3(geo.LatLongToPosition(lat, long, radius+lookAtLift))

	up := yUp
	if math.Abs(90-math.Abs(lat)) < 1e-6 {
		up = zUp
	}

	var q math32.Quat
	q.SetFromRotationMatrix(math32.NewLookAt(target, pos, up))

	var m math32.Matrix4
	m.SetTransform(pos, q, math32.Vec3(1, 1, 1))
	return m
}

func toVec3(v r3.Vector) math32.Vector3 {
	return math32.Vec3(float32(v.X), float32(v.Y), float32(v.Z))
}
