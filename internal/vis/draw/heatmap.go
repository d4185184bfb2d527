// Package draw provides rendering functions for the inspector.
package draw

import (
	"image"
	"image/color"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/elektrokombinacija/railobs/internal/obs"
)

// Sentinel colors
var (
	ColorUnder = color.NRGBA{R: 20, G: 20, B: 28, A: 255}
	ColorOver  = color.NRGBA{R: 245, G: 245, B: 245, A: 255}
	ColorGrid  = color.NRGBA{R: 45, G: 48, B: 55, A: 255}
)

// ValueColor maps a normalized value to a color: Under is dark, Over is
// white and [Lower, Upper] runs from blue to red. Values between the
// sentinels and the range blend toward the sentinel color.
func ValueColor(v float64) color.NRGBA {
	switch {
	case v <= obs.Under:
		return ColorUnder
	case v >= obs.Over:
		return ColorOver
	case v < obs.Lower:
		return blend(ColorUnder, ramp(0), (v-obs.Under)/(obs.Lower-obs.Under))
	case v > obs.Upper:
		return blend(ramp(1), ColorOver, (v-obs.Upper)/(obs.Over-obs.Upper))
	}
	return ramp((v - obs.Lower) / (obs.Upper - obs.Lower))
}

// ramp is a blue-to-red scale over [0, 1].
func ramp(t float64) color.NRGBA {
	blue := color.NRGBA{R: 40, G: 90, B: 220, A: 255}
	red := color.NRGBA{R: 230, G: 60, B: 40, A: 255}
	return blend(blue, red, t)
}

func blend(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// DrawHeatmap draws one feature channel of t as a depth x depth grid: rows
// top to bottom, path nodes left to right.
func DrawHeatmap(gtx layout.Context, t *obs.Tensor, feature int, cell int) image.Point {
	depth := t.Depth()
	size := image.Pt(depth*cell, depth*cell)
	paint.FillShape(gtx.Ops, ColorGrid, clip.Rect(image.Rectangle{Max: size}).Op())

	for r := 0; r < depth; r++ {
		for j := 0; j < depth; j++ {
			rect := image.Rect(j*cell+1, r*cell+1, (j+1)*cell, (r+1)*cell)
			paint.FillShape(gtx.Ops, ValueColor(t.At(r, j, feature)), clip.Rect(rect).Op())
		}
	}
	return size
}
