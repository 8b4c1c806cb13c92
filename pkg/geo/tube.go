package geo

import (
	"math"

	"cogentcore.org/core/math32"
	"github.com/golang/geo/r3"
)

// Tube is a triangulated tube swept along a curve, laid out for upload to a GPU:
// three floats per vertex and normal, six indices per quad.
type Tube struct {
	Vertices math32.ArrayF32
	Normals  math32.ArrayF32
	Indices  math32.ArrayU32

	TubularSegments int
	RadialSegments  int
	Radius          float64

	Bounds math32.Box3
}

// NewTube sweeps a circle of the given radius along the curve. Segment counts below
// the minimum (1 tubular, 3 radial) are raised to it.
func NewTube(curve *CubicBezier, tubularSegments int, radius float64, radialSegments int) *Tube {
	tubularSegments = max(tubularSegments, 1)
	radialSegments = max(radialSegments, 3)

	t := &Tube{
		TubularSegments: tubularSegments,
		RadialSegments:  radialSegments,
		Radius:          radius,
	}
	_, normals, binormals := frames(curve, tubularSegments)

	numVerts := (tubularSegments + 1) * (radialSegments + 1)
	t.Vertices = make(math32.ArrayF32, numVerts*3)
	t.Normals = make(math32.ArrayF32, numVerts*3)
	t.Indices = make(math32.ArrayU32, tubularSegments*radialSegments*6)
	t.Bounds.SetEmpty()

	idx := 0
	for j := 0; j <= tubularSegments; j++ {
		p := curve.PointAt(float64(j) / float64(tubularSegments))
		for i := 0; i <= radialSegments; i++ {
			v := float64(i) / float64(radialSegments) * 2 * math.Pi
			sin, cos := math.Sin(v), -math.Cos(v)

			n := normals[j].Mul(cos).Add(binormals[j].Mul(sin)).Normalize()
			vert := p.Add(n.Mul(radius))

			pt := vec3(vert)
			t.Vertices.SetVector3(idx*3, pt)
			t.Normals.SetVector3(idx*3, vec3(n))
			t.Bounds.ExpandByPoint(pt)
			idx++
		}
	}

	ii := 0
	for j := 1; j <= tubularSegments; j++ {
		for i := 1; i <= radialSegments; i++ {
			a := uint32((radialSegments+1)*(j-1) + (i - 1))
			b := uint32((radialSegments+1)*j + (i - 1))
			c := uint32((radialSegments+1)*j + i)
			d := uint32((radialSegments+1)*(j-1) + i)
			t.Indices.Set(ii, a, b, d, b, c, d)
			ii += 6
		}
	}
	return t
}

// IndexCount is the number of indices a full draw of the tube covers.
func (t *Tube) IndexCount() int {
	return len(t.Indices)
}

// VertexCount is the number of vertices in the tube.
func (t *Tube) VertexCount() int {
	return len(t.Vertices) / 3
}

// Vertex returns vertex i as a float64 vector.
func (t *Tube) Vertex(i int) r3.Vector {
	return r3.Vector{
		X: float64(t.Vertices[i*3]),
		Y: float64(t.Vertices[i*3+1]),
		Z: float64(t.Vertices[i*3+2]),
	}
}

// frames computes tangent, normal and binormal vectors along the curve by parallel transport,
// so the tube does not twist where the curvature flips.
func frames(curve *CubicBezier, segments int) (tangents, normals, binormals []r3.Vector) {
	tangents = make([]r3.Vector, segments+1)
	normals = make([]r3.Vector, segments+1)
	binormals = make([]r3.Vector, segments+1)

	for i := 0; i <= segments; i++ {
		tangents[i] = curve.TangentAt(float64(i) / float64(segments))
	}

	// Seed the first normal from the axis the first tangent is least aligned with.
	t0 := tangents[0]
	axis := r3.Vector{X: 1}
	smallest := math.Abs(t0.X)
	if math.Abs(t0.Y) <= smallest {
		smallest = math.Abs(t0.Y)
		axis = r3.Vector{Y: 1}
	}
	if math.Abs(t0.Z) <= smallest {
		axis = r3.Vector{Z: 1}
	}
	vec := t0.Cross(axis).Normalize()
	normals[0] = t0.Cross(vec)
	binormals[0] = t0.Cross(normals[0])

	for i := 1; i <= segments; i++ {
		normals[i] = normals[i-1]
		k := tangents[i-1].Cross(tangents[i])
		if k.Norm() > 1e-9 {
			k = k.Normalize()
			theta := math.Acos(math.Max(-1, math.Min(1, tangents[i-1].Dot(tangents[i]))))
			normals[i] = rotate(normals[i], k, theta)
		}
		binormals[i] = tangents[i].Cross(normals[i])
	}
	return tangents, normals, binormals
}

// rotate turns v about the unit axis k by theta radians.
func rotate(v, k r3.Vector, theta float64) r3.Vector {
	cos, sin := math.Cos(theta), math.Sin(theta)
	return v.Mul(cos).
		Add(k.Cross(v).Mul(sin)).
		Add(k.Mul(k.Dot(v) * (1 - cos)))
}

func vec3(v r3.Vector) math32.Vector3 {
	return math32.Vec3(float32(v.X), float32(v.Y), float32(v.Z))
}
