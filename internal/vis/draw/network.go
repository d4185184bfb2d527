package draw

import (
	"image/color"
	"math"

	"gioui.org/f32"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/railway"
	"github.com/elektrokombinacija/railobs/internal/vis/interact"
)

// Network colors
var (
	ColorTrack         = color.NRGBA{R: 80, G: 90, B: 100, A: 255}
	ColorSwitch        = color.NRGBA{R: 100, G: 140, B: 220, A: 255}
	ColorTrain         = color.NRGBA{R: 255, G: 150, B: 100, A: 255}
	ColorTrainSelected = color.NRGBA{R: 255, G: 255, B: 100, A: 255}
	ColorMalfunction   = color.NRGBA{R: 220, G: 60, B: 60, A: 255}
	ColorTarget        = color.NRGBA{R: 80, G: 180, B: 100, A: 255}
)

// DrawNetwork draws every track cell; cells holding a routing node are
// highlighted.
func DrawNetwork(gtx layout.Context, g *railway.RailGraph, camera *interact.Camera) {
	span := camera.CellSpan()
	for _, pos := range g.Positions() {
		x, y := camera.CellCenter(pos.Cell())
		col := ColorTrack
		if g.HasNode(pos) {
			col = ColorSwitch
		}
		drawSquare(gtx, x, y, span*0.6, col)
	}
}

// DrawPath draws a route as a polyline through cell centers.
func DrawPath(gtx layout.Context, cells []core.Cell, camera *interact.Camera, col color.NRGBA) {
	width := camera.CellSpan() * 0.1
	for i := 0; i+1 < len(cells); i++ {
		x1, y1 := camera.CellCenter(cells[i])
		x2, y2 := camera.CellCenter(cells[i+1])
		drawLine(gtx, x1, y1, x2, y2, width, col)
	}
}

// DrawTrains draws every placed train as a disc with a heading tick, and its
// target cell.
func DrawTrains(gtx layout.Context, agents []core.AgentState, camera *interact.Camera, selected core.Handle) {
	span := camera.CellSpan()
	for _, a := range agents {
		if a.Handle == selected && !a.Status.Finished() {
			tx, ty := camera.CellCenter(a.Target)
			drawSquare(gtx, tx, ty, span*0.8, ColorTarget)
		}
		if !a.Placed {
			continue
		}

		col := ColorTrain
		switch {
		case a.Malfunctioning():
			col = ColorMalfunction
		case a.Handle == selected:
			col = ColorTrainSelected
		}
		x, y := camera.CellCenter(a.Position.Cell())
		drawFilledCircle(gtx, x, y, span*0.35, col)

		dx, dy := heading(a.Position.Orientation)
		drawLine(gtx, x, y, x+dx*span*0.5, y+dy*span*0.5, span*0.08, col)
	}
}

// heading returns the screen direction of an orientation.
func heading(o core.Orientation) (dx, dy float32) {
	switch o {
	case core.North:
		return 0, -1
	case core.East:
		return 1, 0
	case core.South:
		return 0, 1
	}
	return -1, 0
}

func drawSquare(gtx layout.Context, cx, cy, size float32, col color.NRGBA) {
	half := size / 2
	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(cx-half, cy-half))
	path.LineTo(f32.Pt(cx+half, cy-half))
	path.LineTo(f32.Pt(cx+half, cy+half))
	path.LineTo(f32.Pt(cx-half, cy+half))
	path.Close()

	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}

func drawLine(gtx layout.Context, x1, y1, x2, y2, width float32, col color.NRGBA) {
	dx := x2 - x1
	dy := y2 - y1
	length := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if length < 0.1 {
		return
	}

	dx /= length
	dy /= length
	px := -dy * width / 2
	py := dx * width / 2

	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(x1+px, y1+py))
	path.LineTo(f32.Pt(x2+px, y2+py))
	path.LineTo(f32.Pt(x2-px, y2-py))
	path.LineTo(f32.Pt(x1-px, y1-py))
	path.Close()

	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}

func drawFilledCircle(gtx layout.Context, cx, cy, radius float32, col color.NRGBA) {
	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(cx+radius, cy))

	segments := 16
	for i := 1; i <= segments; i++ {
		angle := float64(i) * 2 * math.Pi / float64(segments)
		path.LineTo(f32.Pt(cx+radius*float32(math.Cos(angle)), cy+radius*float32(math.Sin(angle))))
	}
	path.Close()

	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}
