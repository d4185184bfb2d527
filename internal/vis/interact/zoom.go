// Package interact handles pan and zoom of the network view.
package interact

import (
	"gioui.org/io/pointer"

	"github.com/elektrokombinacija/railobs/internal/core"
)

// CellSize is the width of one grid cell at zoom 1, in pixels.
const CellSize = 32

// Camera manages view transformation (pan and zoom).
type Camera struct {
	OffsetX float32 // Pan offset in screen pixels
	OffsetY float32
	Zoom    float32 // Zoom level (1.0 = 100%)

	dragging bool
	lastX    float32
	lastY    float32
}

// NewCamera creates a new camera with default settings.
func NewCamera() *Camera {
	return &Camera{OffsetX: 16, OffsetY: 16, Zoom: 1}
}

// CellCenter returns the screen position of the center of c.
func (c *Camera) CellCenter(cell core.Cell) (x, y float32) {
	x = (float32(cell.Col)+0.5)*CellSize*c.Zoom + c.OffsetX
	y = (float32(cell.Row)+0.5)*CellSize*c.Zoom + c.OffsetY
	return
}

// CellSpan returns the on-screen width of one cell.
func (c *Camera) CellSpan() float32 {
	return CellSize * c.Zoom
}

// HandleEvent processes pointer events: secondary-button drag pans, the
// wheel zooms around the pointer.
func (c *Camera) HandleEvent(ev pointer.Event) {
	switch ev.Kind {
	case pointer.Press:
		c.dragging = ev.Buttons.Contain(pointer.ButtonSecondary) || ev.Buttons.Contain(pointer.ButtonTertiary)
		c.lastX, c.lastY = ev.Position.X, ev.Position.Y

	case pointer.Drag:
		if c.dragging {
			c.OffsetX += ev.Position.X - c.lastX
			c.OffsetY += ev.Position.Y - c.lastY
		}
		c.lastX, c.lastY = ev.Position.X, ev.Position.Y

	case pointer.Release:
		c.dragging = false

	case pointer.Scroll:
		switch {
		case ev.Scroll.Y > 0:
			c.ZoomBy(1/1.1, ev.Position.X, ev.Position.Y)
		case ev.Scroll.Y < 0:
			c.ZoomBy(1.1, ev.Position.X, ev.Position.Y)
		}
	}
}

// ZoomBy zooms by a factor, keeping the screen point (x, y) fixed.
func (c *Camera) ZoomBy(factor, x, y float32) {
	old := c.Zoom
	c.Zoom = clampZoom(c.Zoom * factor)
	scale := c.Zoom / old
	c.OffsetX = x - (x-c.OffsetX)*scale
	c.OffsetY = y - (y-c.OffsetY)*scale
}

// FitGrid zooms and centers so that rows x cols cells fill the screen.
func (c *Camera) FitGrid(rows, cols int, width, height, margin float32) {
	if rows <= 0 || cols <= 0 {
		return
	}
	zx := (width - 2*margin) / (float32(cols) * CellSize)
	zy := (height - 2*margin) / (float32(rows) * CellSize)
	c.Zoom = clampZoom(min(zx, zy))
	c.OffsetX = (width - float32(cols)*CellSize*c.Zoom) / 2
	c.OffsetY = (height - float32(rows)*CellSize*c.Zoom) / 2
}

func clampZoom(z float32) float32 {
	return max(0.1, min(10, z))
}
