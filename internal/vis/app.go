// Package vis implements a Gio-based inspector for observation tensors.
package vis

import (
	"image"
	"image/color"
	"time"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/railobs/internal/vis/interact"
	"github.com/elektrokombinacija/railobs/internal/vis/state"
	"github.com/elektrokombinacija/railobs/internal/vis/widgets"
)

// App is the main inspector application.
type App struct {
	state   *state.State
	theme   *material.Theme
	network *widgets.Network
	panels  *widgets.Panels
	toolbar *widgets.Toolbar
	camera  *interact.Camera
}

// NewApp creates an inspector over a prepared episode.
func NewApp(st *state.State) *App {
	camera := interact.NewCamera()
	return &App{
		state:   st,
		theme:   material.NewTheme(),
		network: widgets.NewNetwork(st, camera),
		panels:  widgets.NewPanels(st),
		toolbar: widgets.NewToolbar(st),
		camera:  camera,
	}
}

// Run starts the application event loop.
func (a *App) Run(w *app.Window) error {
	var ops op.Ops

	tag := new(int)

	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			for {
				ev, ok := gtx.Event(key.Filter{Focus: tag, Optional: key.ModShift})
				if !ok {
					break
				}
				if ke, ok := ev.(key.Event); ok && ke.State == key.Press {
					a.handleKeyEvent(ke)
				}
			}

			event.Op(gtx.Ops, tag)

			a.layout(gtx)
			e.Frame(gtx.Ops)

			if a.state.Playback.Playing {
				for n := a.state.Playback.Advance(time.Now()); n > 0; n-- {
					a.state.Step()
				}
				w.Invalidate()
			}
		}
	}
}

func (a *App) handleKeyEvent(e key.Event) {
	switch e.Name {
	case key.NameSpace:
		a.state.Step()
	case key.NameLeftArrow:
		a.state.SelectPrev()
	case key.NameRightArrow:
		a.state.SelectNext()
	case "P":
		a.state.Playback.TogglePlay(time.Now())
	case "R":
		a.state.Reset()
		a.network.Refit()
	}
}

func (a *App) layout(gtx layout.Context) layout.Dimensions {
	paint.Fill(gtx.Ops, color.NRGBA{R: 30, G: 30, B: 35, A: 255})

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return a.toolbar.Layout(gtx, a.theme)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return a.network.Layout(gtx)
				}),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return a.layoutPanels(gtx)
				}),
			)
		}),
	)
}

func (a *App) layoutPanels(gtx layout.Context) layout.Dimensions {
	width := gtx.Dp(unit.Dp(420))
	gtx.Constraints.Min.X = width
	gtx.Constraints.Max.X = width
	rect := image.Rect(0, 0, width, gtx.Constraints.Max.Y)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 40, G: 40, B: 45, A: 255}, clip.Rect(rect).Op())
	a.panels.Layout(gtx, a.theme)
	return layout.Dimensions{Size: image.Point{X: width, Y: gtx.Constraints.Max.Y}}
}
