// Package viewer renders a globe with ebiten and maps keyboard and pointer input
// onto it.
package viewer

import (
	"bytes"
	"fmt"
	"image/color"
	"log"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/sudorandom/globe-paths/pkg/globe"
	"github.com/sudorandom/globe-paths/pkg/loop"
)

// InitialRotation matches the starting orientation of the globe.
const InitialRotation = 290 * s1.Degree

var backgroundColor = color.RGBA{8, 10, 16, 255}

// Viewer is an ebiten.Game. Update drives the loop, so the globe and everything it
// schedules runs on ebiten's update goroutine.
type Viewer struct {
	Width, Height int

	globe  *globe.Globe
	loop   *loop.Loop
	rotate *RotateControls

	dotImage   *ebiten.Image
	fillImage  *ebiten.Image
	fontSource *text.GoTextFaceSource

	vertices []ebiten.Vertex
	indices  []uint16
}

func NewViewer(width, height int, g *globe.Globe, l *loop.Loop) *Viewer {
	v := &Viewer{
		Width:  width,
		Height: height,
		globe:  g,
		loop:   l,
		rotate: NewRotateControls(InitialRotation.Radians()),
	}
	if err := v.rotate.Init(); err != nil {
		log.Printf("Failed to start rotate controls: %v", err)
	}
	s, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err == nil {
		v.fontSource = s
	}
	return v
}

// InitDotTexture builds the soft disc each globe dot is stamped with.
func (v *Viewer) InitDotTexture() {
	size := 32
	v.dotImage = ebiten.NewImage(size, size)
	pixels := make([]byte, size*size*4)
	center, maxDist := float64(size)/2.0, float64(size)/2.0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-center, float64(y)+0.5-center
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist >= maxDist {
				continue
			}
			val := 1.0
			if edge := maxDist * 0.8; dist > edge {
				val = math.Cos(((dist - edge) / (maxDist - edge)) * (math.Pi / 2))
			}
			a := uint8(val * 255)
			i := (y*size + x) * 4
			pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = a, a, a, a
		}
	}
	v.dotImage.WritePixels(pixels)

	v.fillImage = ebiten.NewImage(3, 3)
	v.fillImage.Fill(color.White)
}

func (v *Viewer) Rotation() float64 { return v.rotate.Rotation() }

func (v *Viewer) Update() error {
	v.handleKeys()
	v.handlePointer()
	v.loop.Frame(time.Now())
	return nil
}

func (v *Viewer) handleKeys() {
	p := v.globe.Params()
	var err error
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		if v.globe.Status() == globe.StatusPaused {
			err = v.globe.Play()
		} else {
			err = v.globe.Pause()
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		err = v.globe.UpdateMaxPaths(p.MaxPaths + 1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		if p.MaxPaths > 0 {
			err = v.globe.UpdateMaxPaths(p.MaxPaths - 1)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual):
		err = v.globe.UpdateGlobeDots(p.DotDensity*1.25, 0, 0)
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus):
		err = v.globe.UpdateGlobeDots(p.DotDensity/1.25, 0, 0)
	}
	if err != nil {
		log.Printf("Input rejected: %v", err)
	}
}

func (v *Viewer) handlePointer() {
	x, y := ebiten.CursorPosition()
	at := r2.Point{X: float64(x), Y: float64(y)}
	var err error
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		err = v.rotate.Send(PanStart{At: at})
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		err = v.rotate.Send(EvPanEnd)
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		err = v.rotate.Send(PanMove{At: at})
	}
	if err != nil {
		log.Printf("Rotate controls: %v", err)
	}
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	cam := newCamera(v.Width, v.Height, v.globe.Params().GlobeRadius, v.rotate.Rotation())
	v.drawDots(screen, cam)
	v.drawPaths(screen, cam)
	v.drawStatus(screen)
}

func (v *Viewer) drawDots(screen *ebiten.Image, cam camera) {
	field := v.globe.DotField()
	if field == nil || field.Released() || v.dotImage == nil {
		return
	}
	size := float64(v.dotImage.Bounds().Dx())
	scale := 2 * field.DotRadius * cam.scale / size
	op := &ebiten.DrawImageOptions{}
	for i := 0; i < field.Count; i++ {
		p := field.Position(i)
		sx, sy, depth := cam.project(float64(p.X), float64(p.Y), float64(p.Z))
		if depth <= 0 {
			continue
		}
		op.GeoM.Reset()
		op.GeoM.Translate(-size/2, -size/2)
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(sx, sy)
		op.ColorScale.Reset()
		op.ColorScale.ScaleWithColor(field.Color)
		// Fade toward the limb.
		op.ColorScale.ScaleAlpha(float32(0.35 + 0.65*depth/cam.radius))
		screen.DrawImage(v.dotImage, op)
	}
}

func (v *Viewer) drawPaths(screen *ebiten.Image, cam camera) {
	if v.fillImage == nil {
		return
	}
	op := &ebiten.DrawTrianglesOptions{}
	for _, p := range v.globe.Paths() {
		mesh := p.Entity.Mesh()
		if mesh == nil || mesh.Released() {
			continue
		}
		v.buildTriangles(mesh, cam)
		if len(v.indices) == 0 {
			continue
		}
		screen.DrawTriangles(v.vertices, v.indices, v.fillImage, op)
	}
}

// buildTriangles fills the vertex and index buffers with the visible, unoccluded
// triangles of a path mesh.
func (v *Viewer) buildTriangles(mesh *globe.Mesh, cam camera) {
	v.vertices = v.vertices[:0]
	v.indices = v.indices[:0]
	tube := mesh.Tube
	if tube.VertexCount() > math.MaxUint16 {
		return
	}
	r, g, b, a := float32(mesh.Color.R)/255, float32(mesh.Color.G)/255, float32(mesh.Color.B)/255, float32(mesh.Color.A)/255

	hidden := make([]bool, tube.VertexCount())
	for i := 0; i < tube.VertexCount(); i++ {
		p := tube.Vertex(i)
		rx, ry, rz := cam.spin(p.X, p.Y, p.Z)
		hidden[i] = cam.hidden(rx, ry, rz)
		v.vertices = append(v.vertices, ebiten.Vertex{
			DstX:   float32(cam.cx + rx*cam.scale),
			DstY:   float32(cam.cy - ry*cam.scale),
			SrcX:   1,
			SrcY:   1,
			ColorR: r,
			ColorG: g,
			ColorB: b,
			ColorA: a,
		})
	}

	visible := mesh.VisibleIndices()
	for i := 0; i+2 < len(visible); i += 3 {
		i0, i1, i2 := visible[i], visible[i+1], visible[i+2]
		if hidden[i0] || hidden[i1] || hidden[i2] {
			continue
		}
		v.indices = append(v.indices, uint16(i0), uint16(i1), uint16(i2))
	}
}

func (v *Viewer) drawStatus(screen *ebiten.Image) {
	if v.fontSource == nil {
		return
	}
	margin, fontSize := 20.0, 16.0
	if v.Width > 2000 {
		margin, fontSize = 40.0, 32.0
	}
	snap := v.globe.Snapshot()
	lines := []string{
		fmt.Sprintf("STATUS  %s", snap.Status),
		fmt.Sprintf("DOTS    %d  (density %.1f, rows %d)", snap.Dots, snap.Params.DotDensity, snap.Params.Rows),
		fmt.Sprintf("PATHS   %d / %d", len(snap.Paths), snap.Params.MaxPaths),
	}
	if snap.Error != "" {
		lines = append(lines, "ERROR   "+snap.Error)
	}
	lines = append(lines, "space pause   up/down paths   +/- density   drag rotate")

	boxW := float64(v.Width) * 0.35
	boxH := float64(len(lines))*fontSize*1.5 + fontSize
	vector.DrawFilledRect(screen, float32(margin-10), float32(margin-10), float32(boxW), float32(boxH), color.RGBA{0, 0, 0, 100}, false)
	vector.StrokeRect(screen, float32(margin-10), float32(margin-10), float32(boxW), float32(boxH), 1, color.RGBA{36, 42, 53, 255}, false)

	face := &text.GoTextFace{Source: v.fontSource, Size: fontSize}
	for i, line := range lines {
		op := &text.DrawOptions{}
		op.GeoM.Translate(margin, margin+float64(i)*fontSize*1.5)
		if i == len(lines)-1 {
			op.ColorScale.Scale(1, 1, 1, 0.5)
		}
		text.Draw(screen, line, face, op)
	}
}

func (v *Viewer) Layout(w, h int) (int, int) {
	return v.Width, v.Height
}
