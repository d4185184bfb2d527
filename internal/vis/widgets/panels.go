package widgets

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/railobs/internal/obs"
	"github.com/elektrokombinacija/railobs/internal/vis/draw"
	"github.com/elektrokombinacija/railobs/internal/vis/state"
)

const panelColumns = 3

// Panels shows one heatmap per feature channel of the selected agent.
type Panels struct {
	state *state.State
}

// NewPanels creates the feature panels widget.
func NewPanels(st *state.State) *Panels {
	return &Panels{state: st}
}

// Layout renders the panels in a grid.
func (p *Panels) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	t := p.state.Tensor()
	if t == nil {
		label := material.Label(th, 14, fmt.Sprintf("no tensor for train %d", p.state.Selected))
		label.Color = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
		return layout.UniformInset(unit.Dp(12)).Layout(gtx, label.Layout)
	}

	rows := (obs.Features + panelColumns - 1) / panelColumns
	width := gtx.Constraints.Max.X / panelColumns
	height := gtx.Constraints.Max.Y / rows
	labelHeight := gtx.Dp(unit.Dp(18))
	cell := max(2, min(width-8, height-labelHeight-8)/t.Depth())

	for f := 0; f < obs.Features; f++ {
		offset := image.Pt((f%panelColumns)*width+4, (f/panelColumns)*height+4)
		stack := op.Offset(offset).Push(gtx.Ops)

		label := material.Label(th, 11, obs.FeatureNames[f])
		label.Color = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
		label.Layout(gtx)

		heat := op.Offset(image.Pt(0, labelHeight)).Push(gtx.Ops)
		draw.DrawHeatmap(gtx, t, f, cell)
		heat.Pop()

		stack.Pop()
	}
	return layout.Dimensions{Size: gtx.Constraints.Max}
}
