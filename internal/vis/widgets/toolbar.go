package widgets

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/railobs/internal/vis/state"
)

// Toolbar provides the control buttons and the episode status line.
type Toolbar struct {
	state *state.State

	prevBtn  widget.Clickable
	nextBtn  widget.Clickable
	stepBtn  widget.Clickable
	playBtn  widget.Clickable
	resetBtn widget.Clickable
}

// NewToolbar creates a new toolbar.
func NewToolbar(st *state.State) *Toolbar {
	return &Toolbar{state: st}
}

// Layout renders the toolbar.
func (t *Toolbar) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	height := gtx.Dp(unit.Dp(44))

	rect := image.Rect(0, 0, gtx.Constraints.Max.X, height)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 40, G: 43, B: 48, A: 255}, clip.Rect(rect).Op())

	t.handleClicks(gtx)

	gtx.Constraints.Max.Y = height
	return layout.Inset{Left: unit.Dp(10), Right: unit.Dp(10), Top: unit.Dp(8), Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.button(gtx, th, &t.prevBtn, "<")
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.button(gtx, th, &t.nextBtn, ">")
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(12)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.button(gtx, th, &t.stepBtn, ">|")
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				if t.state.Playback.Playing {
					return t.button(gtx, th, &t.playBtn, "||")
				}
				return t.button(gtx, th, &t.playBtn, ">>")
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.button(gtx, th, &t.resetBtn, "R")
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(16)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return t.status(gtx, th)
			}),
		)
	})
}

func (t *Toolbar) status(gtx layout.Context, th *material.Theme) layout.Dimensions {
	st := t.state
	text := fmt.Sprintf("episode %s  tick %d  train %d  deadlocks %d",
		st.Engine.Episode().String()[:8], st.Sim.Tick(), st.Selected, st.Deadlocks())
	col := color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	if st.Err != nil {
		text = st.Err.Error()
		col = color.NRGBA{R: 255, G: 120, B: 110, A: 255}
	}
	label := material.Label(th, 13, text)
	label.Color = col
	label.MaxLines = 1
	return label.Layout(gtx)
}

func (t *Toolbar) button(gtx layout.Context, th *material.Theme, btn *widget.Clickable, text string) layout.Dimensions {
	bg := color.NRGBA{R: 55, G: 58, B: 65, A: 255}
	if btn.Hovered() {
		bg = color.NRGBA{R: 70, G: 73, B: 80, A: 255}
	}

	return btn.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Background{}.Layout(gtx,
			func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min = image.Point{X: 32, Y: 28}
				rect := image.Rect(0, 0, gtx.Constraints.Min.X, gtx.Constraints.Min.Y)
				paint.FillShape(gtx.Ops, bg, clip.Rect(rect).Op())
				return layout.Dimensions{Size: gtx.Constraints.Min}
			},
			func(gtx layout.Context) layout.Dimensions {
				return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					label := material.Label(th, 12, text)
					label.Color = color.NRGBA{R: 220, G: 220, B: 220, A: 255}
					return label.Layout(gtx)
				})
			},
		)
	})
}

func (t *Toolbar) handleClicks(gtx layout.Context) {
	for t.prevBtn.Clicked(gtx) {
		t.state.SelectPrev()
	}
	for t.nextBtn.Clicked(gtx) {
		t.state.SelectNext()
	}
	for t.stepBtn.Clicked(gtx) {
		t.state.Step()
	}
	for t.playBtn.Clicked(gtx) {
		t.state.Playback.TogglePlay(time.Now())
	}
	for t.resetBtn.Clicked(gtx) {
		t.state.Reset()
	}
}
