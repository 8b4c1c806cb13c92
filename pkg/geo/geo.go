// Package geo provides the spherical math, map masks and curve geometry used to build the globe.
package geo

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// GeoLocation is a single entry of the location dataset paths are drawn between.
type GeoLocation struct {
	Country    string  `json:"country"`
	Region     string  `json:"region"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Long       float64 `json:"long"`
	Population int     `json:"population"`
}

// LatLongToPosition converts degrees on a sphere of the given radius into a point in model space.
// Longitude -180 lands on +X and the north pole on +Y.
func LatLongToPosition(lat, long, radius float64) r3.Vector {
	phi := (s1.Angle(90-lat) * s1.Degree).Radians()
	theta := (s1.Angle(long+180) * s1.Degree).Radians()

	return r3.Vector{
		X: -radius * math.Sin(phi) * math.Cos(theta),
		Y: radius * math.Cos(phi),
		Z: radius * math.Sin(phi) * math.Sin(theta),
	}
}

// Midpoint returns the point halfway along the great circle between two locations, in degrees.
func Midpoint(lat1, long1, lat2, long2 float64) (float64, float64) {
	a := s2.LatLngFromDegrees(lat1, long1)
	b := s2.LatLngFromDegrees(lat2, long2)

	phi1, lambda1 := a.Lat.Radians(), a.Lng.Radians()
	phi2 := b.Lat.Radians()
	deltaLong := b.Lng.Radians() - lambda1

	bx := math.Cos(phi2) * math.Cos(deltaLong)
	by := math.Cos(phi2) * math.Sin(deltaLong)

	midLat := math.Atan2(
		math.Sin(phi1)+math.Sin(phi2),
		math.Sqrt((math.Cos(phi1)+bx)*(math.Cos(phi1)+bx)+by*by),
	)
	midLong := lambda1 + math.Atan2(by, math.Cos(phi1)+bx)

	return s1.Angle(midLat).Degrees(), s1.Angle(midLong).Degrees()
}

// Normalize maps value from [min, max] onto [a, b].
// An empty source range maps everything to a.
func Normalize(value, min, max, a, b float64) float64 {
	if max == min {
		return a
	}
	n := (value - min) / (max - min)
	if math.IsNaN(n) {
		n = 0
	}
	return (b-a)*n + a
}
