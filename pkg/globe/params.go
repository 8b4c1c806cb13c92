package globe

import (
	"fmt"
	"image/color"
	"time"
)

// Params are the user-tunable globe parameters.
type Params struct {
	DotDensity  float64 `json:"dotDensity"`
	Rows        int     `json:"rows"`
	GlobeRadius float64 `json:"globeRadius"`
	MaxPaths    int     `json:"maxPaths"`
}

func DefaultParams() Params {
	return Params{
		DotDensity:  50,
		Rows:        200,
		GlobeRadius: 1,
		MaxPaths:    10,
	}
}

// Validate checks the whole set. Nothing is applied from a set that fails.
func (p Params) Validate() error {
	switch {
	case p.DotDensity <= 0:
		return fmt.Errorf("%w: dot density %v must be positive", ErrInvalidParams, p.DotDensity)
	case p.Rows <= 0:
		return fmt.Errorf("%w: rows %d must be positive", ErrInvalidParams, p.Rows)
	case p.GlobeRadius <= 0:
		return fmt.Errorf("%w: globe radius %v must be positive", ErrInvalidParams, p.GlobeRadius)
	case p.MaxPaths < 0:
		return fmt.Errorf("%w: max paths %d must not be negative", ErrInvalidParams, p.MaxPaths)
	}
	return nil
}

// ArcConfig picks the arc height of a path from the distance between its ends.
// Thresholds and heights are in globe radii.
type ArcConfig struct {
	ShortToMedium float64
	MediumToLong  float64

	Short  float64
	Medium float64
	Long   float64
}

func DefaultArcConfig() ArcConfig {
	return ArcConfig{
		ShortToMedium: 1.2,
		MediumToLong:  1.8,
		Short:         1.3,
		Medium:        1.53,
		Long:          1.83,
	}
}

// height returns the preset for a chord of length distance on a globe of the given radius.
func (c ArcConfig) height(distance, radius float64) float64 {
	switch {
	case distance > c.MediumToLong*radius:
		return c.Long * radius
	case distance > c.ShortToMedium*radius:
		return c.Medium * radius
	default:
		return c.Short * radius
	}
}

// DotStyle describes how dots are drawn.
type DotStyle struct {
	// Size divides the globe radius to give the dot radius.
	Size        float64
	Segments    int
	Color       color.RGBA
	RenderOrder int
}

// MinDotSegments is the smallest circle tessellation that still reads as round.
const MinDotSegments = 5

var Magenta = color.RGBA{R: 0xff, G: 0x00, B: 0xdc, A: 0xff}

func DefaultDotStyle() DotStyle {
	return DotStyle{
		Size:        150,
		Segments:    MinDotSegments,
		Color:       Magenta,
		RenderOrder: 3,
	}
}

// Options configure the parts of the globe that are not user-tunable at runtime.
type Options struct {
	Dots DotStyle
	Arc  ArcConfig

	PathColor      color.RGBA
	SpawnInterval  time.Duration
	PoolSize       int
	TubeRadius     float64 // in globe radii
	RadialSegments int

	// Seed feeds the path pool's pairing.
	Seed int64
}

func DefaultOptions() Options {
	return Options{
		Dots:           DefaultDotStyle(),
		Arc:            DefaultArcConfig(),
		PathColor:      Magenta,
		SpawnInterval:  100 * time.Millisecond,
		PoolSize:       200,
		TubeRadius:     0.004,
		RadialSegments: 3,
		Seed:           1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Dots.Size <= 0 {
		o.Dots.Size = d.Dots.Size
	}
	o.Dots.Segments = max(o.Dots.Segments, MinDotSegments)
	if o.Dots.Color == (color.RGBA{}) {
		o.Dots.Color = d.Dots.Color
	}
	if o.Dots.RenderOrder == 0 {
		o.Dots.RenderOrder = d.Dots.RenderOrder
	}
	if o.Arc == (ArcConfig{}) {
		o.Arc = d.Arc
	}
	if o.PathColor == (color.RGBA{}) {
		o.PathColor = d.PathColor
	}
	if o.SpawnInterval <= 0 {
		o.SpawnInterval = d.SpawnInterval
	}
	if o.PoolSize <= 0 {
		o.PoolSize = d.PoolSize
	}
	if o.TubeRadius <= 0 {
		o.TubeRadius = d.TubeRadius
	}
	if o.RadialSegments <= 0 {
		o.RadialSegments = d.RadialSegments
	}
	return o
}
