package geo

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sort"

	// Map assets are shipped as PNG.
	_ "image/png"

	geojson "github.com/paulmach/go.geojson"
	"golang.org/x/image/draw"
)

// VisibleAlpha is the alpha value a mask pixel must exceed for a dot to be placed on it.
const VisibleAlpha = 90

var ErrInvalidMask = errors.New("invalid map mask")

// MapMask is the per-pixel RGBA data of the world map, read only after construction.
type MapMask struct {
	Width, Height int
	Pix           []uint8
}

func NewMapMask(width, height int, pix []uint8) (*MapMask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidMask, width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrInvalidMask, len(pix), width*height*4)
	}
	return &MapMask{Width: width, Height: height, Pix: pix}, nil
}

// PixelAt projects a location onto mask pixel coordinates.
// Coordinates on the far edges (lat -90, long 180) are clamped onto the last row and column.
func (m *MapMask) PixelAt(lat, long float64) (int, int) {
	x := int(((long + 180) / 360) * float64(m.Width))
	y := int(((-lat + 90) / 180) * float64(m.Height))
	return clamp(x, 0, m.Width-1), clamp(y, 0, m.Height-1)
}

// Alpha returns the alpha channel at pixel (x, y).
func (m *MapMask) Alpha(x, y int) uint8 {
	return m.Pix[(x+y*m.Width)*4+3]
}

// IsDotVisible reports whether the mask is opaque enough at the location.
func (m *MapMask) IsDotVisible(lat, long float64) bool {
	x, y := m.PixelAt(lat, long)
	return m.Alpha(x, y) > VisibleAlpha
}

// IsDotVisible is the free-function form of MapMask.IsDotVisible.
func IsDotVisible(lat, long float64, mask *MapMask) bool {
	return mask.IsDotVisible(lat, long)
}

// MaskFromImage copies an image into a mask. When maxWidth is positive and smaller than
// the image, the image is downscaled first, keeping the aspect ratio.
func MaskFromImage(img image.Image, maxWidth int) (*MapMask, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidMask)
	}

	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
		if h == 0 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return NewMapMask(w, h, dst.Pix)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return NewMapMask(w, h, dst.Pix)
}

// DecodeMask decodes a raster map image (PNG) into a mask.
func DecodeMask(r io.Reader, maxWidth int) (*MapMask, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding map image: %w", err)
	}
	return MaskFromImage(img, maxWidth)
}

// MaskFromGeoJSON rasterises the land polygons of a feature collection into an
// equirectangular mask of the given size. Land is fully opaque, everything else transparent.
func MaskFromGeoJSON(data []byte, width, height int) (*MapMask, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding map geojson: %w", err)
	}
	mask, err := NewMapMask(width, height, make([]uint8, width*height*4))
	if err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if f.Geometry.IsPolygon() {
			mask.fillPolygon(f.Geometry.Polygon)
		} else if f.Geometry.IsMultiPolygon() {
			for _, poly := range f.Geometry.MultiPolygon {
				mask.fillPolygon(poly)
			}
		}
	}
	return mask, nil
}

func (m *MapMask) project(lat, lng float64) (x, y float64) {
	return (lng + 180) / 360 * float64(m.Width), (90 - lat) / 180 * float64(m.Height)
}

// fillPolygon is an even-odd scanline fill; holes in later rings are left transparent.
func (m *MapMask) fillPolygon(rings [][][]float64) {
	if len(rings) == 0 {
		return
	}
	type point struct{ x, y float64 }
	projectedRings := make([][]point, len(rings))
	minY, maxY := float64(m.Height), 0.0
	for i, ring := range rings {
		projectedRings[i] = make([]point, 0, len(ring))
		for _, p := range ring {
			if len(p) < 2 {
				continue
			}
			x, y := m.project(p[1], p[0])
			projectedRings[i] = append(projectedRings[i], point{x, y})
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	for y := int(minY); y <= int(maxY); y++ {
		if y < 0 || y >= m.Height {
			continue
		}
		var nodes []int
		fy := float64(y) + 0.5
		for _, ring := range projectedRings {
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				if (ring[i].y < fy && ring[j].y >= fy) || (ring[j].y < fy && ring[i].y >= fy) {
					nodeX := ring[i].x + (fy-ring[i].y)/(ring[j].y-ring[i].y)*(ring[j].x-ring[i].x)
					nodes = append(nodes, int(nodeX+0.5))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i < len(nodes)-1; i += 2 {
			xs, xe := clamp(nodes[i], 0, m.Width), clamp(nodes[i+1], 0, m.Width)
			for x := xs; x < xe; x++ {
				off := (y*m.Width + x) * 4
				m.Pix[off], m.Pix[off+1], m.Pix[off+2], m.Pix[off+3] = 255, 255, 255, 255
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
