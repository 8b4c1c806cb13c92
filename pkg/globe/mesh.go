package globe

import (
	"image/color"
	"math"

	"github.com/sudorandom/globe-paths/pkg/geo"
)

// Unbounded is the draw range count meaning "to the end of the index buffer".
const Unbounded = math.MaxInt32

// DrawRange is the sub-range of a mesh's index buffer the renderer draws.
type DrawRange struct {
	Start, Count int
}

// Mesh is a path's tube geometry plus its material colour and draw range.
// It is owned by exactly one path entity.
type Mesh struct {
	Tube  *geo.Tube
	Color color.RGBA

	drawRange DrawRange
	released  bool
}

func newMesh(tube *geo.Tube, c color.RGBA) *Mesh {
	return &Mesh{Tube: tube, Color: c}
}

func (m *Mesh) SetDrawRange(start, count int) {
	m.drawRange = DrawRange{Start: start, Count: count}
}

func (m *Mesh) DrawRange() DrawRange {
	return m.drawRange
}

// IndexCount is the total number of indices in the tube.
func (m *Mesh) IndexCount() int {
	if m.Tube == nil {
		return 0
	}
	return m.Tube.IndexCount()
}

// VisibleIndices returns the part of the index buffer inside the draw range,
// trimmed to whole triangles.
func (m *Mesh) VisibleIndices() []uint32 {
	if m.released || m.Tube == nil {
		return nil
	}
	total := m.IndexCount()
	start := min(max(m.drawRange.Start, 0), total)
	end := total
	if m.drawRange.Count < total-start {
		end = start + max(m.drawRange.Count, 0)
	}
	start -= start % 3
	end -= end % 3
	if end <= start {
		return nil
	}
	return m.Tube.Indices[start:end]
}

// Release drops the geometry. The mesh draws nothing afterwards.
func (m *Mesh) Release() {
	if m.released {
		return
	}
	m.released = true
	m.Tube = nil
}

func (m *Mesh) Released() bool { return m.released }
