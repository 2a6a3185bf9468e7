// Package gesture turns pointer events into photo transform changes.
// The Controller owns the TransformState; the renderer only reads snapshots of it.
package gesture

import (
	"math"

	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/model"
)

// State is the gesture state machine's current state.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Viewport is where the canvas is displayed, in client (display) pixels.
// The canvas backing store is usually larger than its displayed size.
type Viewport struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToCanvas converts client coordinates to canvas pixels for a canvas of the given size.
// A zero-sized viewport is treated as unscaled.
func (v Viewport) ToCanvas(clientX, clientY float64, canvasW, canvasH int) model.Point {
	sx, sy := 1.0, 1.0
	if v.Width > 0 {
		sx = float64(canvasW) / v.Width
	}
	if v.Height > 0 {
		sy = float64(canvasH) / v.Height
	}
	return model.Point{X: (clientX - v.Left) * sx, Y: (clientY - v.Top) * sy}
}

// Controller is the pointer state machine. It is not safe for concurrent use;
// the editor surface serializes access to it.
type Controller struct {
	layout    layout.Descriptor
	transform model.Transform
	state     State
	anchor    model.Point
	photoKey  string
	hasPhoto  bool
}

// NewController creates an idle controller with the identity transform.
func NewController(d layout.Descriptor) *Controller {
	return &Controller{
		layout:    d,
		transform: model.IdentityTransform(),
	}
}

// SetLayout updates the geometry used for hit testing and scale bounds.
// The current scale is re-clamped to the new format's range.
func (c *Controller) SetLayout(d layout.Descriptor) {
	c.layout = d
	c.transform.Scale = d.ClampScale(c.transform.Scale)
}

// SetPhoto records the current photo. A different photo resets the transform
// to identity and cancels any active gesture. It returns true on reset.
func (c *Controller) SetPhoto(photo *model.Source) bool {
	key := photo.Key()
	c.hasPhoto = !photo.Empty()
	if key == c.photoKey {
		return false
	}
	c.photoKey = key
	c.transform = model.IdentityTransform()
	c.end()
	return true
}

// SetPhotoDecoded records whether the last render managed to decode the photo.
// Gestures only start on a photo that is actually on the canvas.
func (c *Controller) SetPhotoDecoded(ok bool) {
	c.hasPhoto = ok && c.photoKey != ""
}

// Transform returns a snapshot of the transform.
func (c *Controller) Transform() model.Transform { return c.transform }

// SetTransform replaces the transform, clamping the scale.
func (c *Controller) SetTransform(t model.Transform) {
	if t.Scale == 0 {
		t.Scale = 1
	}
	t.Scale = c.layout.ClampScale(t.Scale)
	c.transform = t
}

// State returns the current gesture state.
func (c *Controller) State() State { return c.state }

// PointerDown starts a gesture when p (canvas pixels) is inside the photo rect:
// Resizing inside the corner hit zone, Dragging elsewhere. It reports whether a
// gesture started.
func (c *Controller) PointerDown(p model.Point) bool {
	if !c.hasPhoto || !c.layout.Photo.Contains(p) {
		return false
	}
	if c.layout.Handle().Contains(p) {
		c.state = Resizing
	} else {
		c.state = Dragging
	}
	c.anchor = p
	return true
}

// PointerMove applies the delta since the last pointer position and reports
// whether the transform changed.
func (c *Controller) PointerMove(p model.Point) bool {
	if c.state == Idle {
		return false
	}

	dx := p.X - c.anchor.X
	dy := p.Y - c.anchor.Y
	c.anchor = p
	if dx == 0 && dy == 0 {
		return false
	}

	switch c.state {
	case Dragging:
		c.transform.OffsetX += dx
		c.transform.OffsetY += dy
	case Resizing:
		c.transform.Scale = c.layout.ClampScale(c.transform.Scale * c.resizeFactor(dx, dy))
	}
	return true
}

// resizeFactor derives a scale multiplier from the dominant axis of the delta,
// relative to the photo rect's size on that axis.
func (c *Controller) resizeFactor(dx, dy float64) float64 {
	if math.Abs(dx) >= math.Abs(dy) {
		return (c.layout.Photo.W + dx) / c.layout.Photo.W
	}
	return (c.layout.Photo.H + dy) / c.layout.Photo.H
}

// PointerUp ends the gesture.
func (c *Controller) PointerUp() { c.end() }

// PointerLeave ends the gesture when the pointer leaves the canvas.
func (c *Controller) PointerLeave() { c.end() }

func (c *Controller) end() {
	c.state = Idle
	c.anchor = model.Point{}
}
