// Package widgets provides Gio UI widgets for the inspector.
package widgets

import (
	"image"
	"image/color"

	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/elektrokombinacija/railobs/internal/vis/draw"
	"github.com/elektrokombinacija/railobs/internal/vis/interact"
	"github.com/elektrokombinacija/railobs/internal/vis/state"
)

// Network shows the rail network, the trains and the selected train's
// packed route.
type Network struct {
	state  *state.State
	camera *interact.Camera
	fitted bool
}

// NewNetwork creates a new network widget.
func NewNetwork(st *state.State, camera *interact.Camera) *Network {
	return &Network{state: st, camera: camera}
}

// Layout renders the network.
func (n *Network) Layout(gtx layout.Context) layout.Dimensions {
	bounds := gtx.Constraints.Max
	defer clip.Rect(image.Rect(0, 0, bounds.X, bounds.Y)).Push(gtx.Ops).Pop()
	paint.Fill(gtx.Ops, color.NRGBA{R: 25, G: 28, B: 32, A: 255})

	if !n.fitted {
		n.fit(bounds)
	}
	n.handlePointerEvents(gtx)

	draw.DrawNetwork(gtx, n.state.Graph, n.camera)
	if snap := n.state.Engine.Snapshot(); snap != nil && int(n.state.Selected) < len(snap.Agents) {
		draw.DrawPath(gtx, snap.Agent(n.state.Selected).Packed.Cells, n.camera, draw.ColorTrainSelected)
	}
	draw.DrawTrains(gtx, n.state.Sim.Agents(), n.camera, n.state.Selected)

	return layout.Dimensions{Size: bounds}
}

func (n *Network) fit(bounds image.Point) {
	rows, cols := 0, 0
	for _, p := range n.state.Graph.Positions() {
		rows = max(rows, p.Row+1)
		cols = max(cols, p.Col+1)
	}
	n.camera.FitGrid(rows, cols, float32(bounds.X), float32(bounds.Y), 16)
	n.fitted = true
}

func (n *Network) handlePointerEvents(gtx layout.Context) {
	area := clip.Rect(image.Rect(0, 0, gtx.Constraints.Max.X, gtx.Constraints.Max.Y)).Push(gtx.Ops)
	event.Op(gtx.Ops, n)
	area.Pop()

	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:  n,
			Kinds:   pointer.Press | pointer.Drag | pointer.Release | pointer.Scroll,
			ScrollY: pointer.ScrollRange{Min: -100, Max: 100},
		})
		if !ok {
			break
		}
		if pe, ok := ev.(pointer.Event); ok {
			n.camera.HandleEvent(pe)
		}
	}
}

// Refit fits the whole network on the next frame.
func (n *Network) Refit() {
	n.fitted = false
}
