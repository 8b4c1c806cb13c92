package geo

import (
	"github.com/golang/geo/r3"
)

// arcDivisions is the number of samples in a curve's arc-length table.
const arcDivisions = 200

// CubicBezier is a cubic bezier curve in model space with a cached arc-length table
// so points can be sampled evenly along the curve.
type CubicBezier struct {
	V0, V1, V2, V3 r3.Vector

	lengths []float64
}

func NewCubicBezier(v0, v1, v2, v3 r3.Vector) *CubicBezier {
	c := &CubicBezier{V0: v0, V1: v1, V2: v2, V3: v3}
	c.lengths = make([]float64, arcDivisions+1)
	last := c.Point(0)
	for i := 1; i <= arcDivisions; i++ {
		p := c.Point(float64(i) / arcDivisions)
		c.lengths[i] = c.lengths[i-1] + p.Distance(last)
		last = p
	}
	return c
}

// Point evaluates the curve at parameter t in [0, 1].
func (c *CubicBezier) Point(t float64) r3.Vector {
	k := 1 - t
	return c.V0.Mul(k * k * k).
		Add(c.V1.Mul(3 * k * k * t)).
		Add(c.V2.Mul(3 * k * t * t)).
		Add(c.V3.Mul(t * t * t))
}

// Derivative is the first derivative of the curve at parameter t.
func (c *CubicBezier) Derivative(t float64) r3.Vector {
	k := 1 - t
	return c.V1.Sub(c.V0).Mul(3 * k * k).
		Add(c.V2.Sub(c.V1).Mul(6 * k * t)).
		Add(c.V3.Sub(c.V2).Mul(3 * t * t))
}

// Length is the approximate arc length of the curve.
func (c *CubicBezier) Length() float64 {
	return c.lengths[arcDivisions]
}

// paramAt maps u, a fraction of the arc length, onto the curve parameter t.
func (c *CubicBezier) paramAt(u float64) float64 {
	if u <= 0 {
		return 0
	}
	if u >= 1 {
		return 1
	}
	target := u * c.Length()

	lo, hi := 0, arcDivisions
	for lo <= hi {
		mid := lo + (hi-lo)/2
		switch {
		case c.lengths[mid] < target:
			lo = mid + 1
		case c.lengths[mid] > target:
			hi = mid - 1
		default:
			return float64(mid) / arcDivisions
		}
	}
	i := hi
	if i < 0 {
		i = 0
	}
	if i >= arcDivisions {
		return 1
	}
	segment := c.lengths[i+1] - c.lengths[i]
	if segment == 0 {
		return float64(i) / arcDivisions
	}
	return (float64(i) + (target-c.lengths[i])/segment) / arcDivisions
}

// PointAt returns the point at fraction u of the curve's arc length.
func (c *CubicBezier) PointAt(u float64) r3.Vector {
	return c.Point(c.paramAt(u))
}

// TangentAt returns the unit tangent at fraction u of the curve's arc length.
func (c *CubicBezier) TangentAt(u float64) r3.Vector {
	return c.Derivative(c.paramAt(u)).Normalize()
}
