package viewer

import "math"

// camera is an orthographic view down the -Z axis of a globe spun around Y.
type camera struct {
	rotation float64
	scale    float64
	cx, cy   float64
	radius   float64
}

func newCamera(width, height int, radius, rotation float64) camera {
	fit := math.Min(float64(width), float64(height)) * 0.4
	if radius <= 0 {
		radius = 1
	}
	return camera{
		rotation: rotation,
		scale:    fit / radius,
		cx:       float64(width) / 2,
		cy:       float64(height) / 2,
		radius:   radius,
	}
}

// spin rotates a world point around Y. The returned z grows toward the viewer.
func (c camera) spin(x, y, z float64) (float64, float64, float64) {
	sin, cos := math.Sincos(c.rotation)
	return x*cos + z*sin, y, -x*sin + z*cos
}

// project returns screen coordinates and depth for a world point.
func (c camera) project(x, y, z float64) (sx, sy, depth float64) {
	rx, ry, rz := c.spin(x, y, z)
	return c.cx + rx*c.scale, c.cy - ry*c.scale, rz
}

// hidden reports whether the globe's disc covers a rotated point.
func (c camera) hidden(rx, ry, rz float64) bool {
	return rz < 0 && rx*rx+ry*ry < c.radius*c.radius
}
