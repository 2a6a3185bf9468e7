// Package geometry holds the pure coordinate math shared by the layout and the
// renderer: rounded-rect paths, cover fitting and gradient endpoints.
package geometry

import (
	"github.com/fleveque/promo-composer/internal/model"
)

// PathBuilder is the subset of a 2D drawing context needed to trace paths.
// *gg.Context satisfies it.
type PathBuilder interface {
	NewSubPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	QuadraticTo(x1, y1, x2, y2 float64)
	ClosePath()
}

// RoundedRect traces a closed rectangle with quadratic corners of radius r.
// r is not clamped; callers keep it at or below min(w,h)/2.
func RoundedRect(p PathBuilder, x, y, w, h, r float64) {
	p.NewSubPath()
	p.MoveTo(x+r, y)
	p.LineTo(x+w-r, y)
	p.QuadraticTo(x+w, y, x+w, y+r)
	p.LineTo(x+w, y+h-r)
	p.QuadraticTo(x+w, y+h, x+w-r, y+h)
	p.LineTo(x+r, y+h)
	p.QuadraticTo(x, y+h, x, y+h-r)
	p.LineTo(x, y+r)
	p.QuadraticTo(x, y, x+r, y)
	p.ClosePath()
}

// CoverFit scales a source of the given aspect ratio (width/height) so that it
// fully covers target, centered. One axis may overflow the target.
func CoverFit(aspect float64, target model.Rect) model.Rect {
	if aspect <= 0 || target.W <= 0 || target.H <= 0 {
		return target
	}

	if aspect > target.W/target.H {
		// Source is wider than the target: match heights, overflow horizontally.
		h := target.H
		w := h * aspect
		return model.Rect{X: target.X - (w-target.W)/2, Y: target.Y, W: w, H: h}
	}

	w := target.W
	h := w / aspect
	return model.Rect{X: target.X, Y: target.Y - (h-target.H)/2, W: w, H: h}
}

// CoverFitWithTransform applies the user's transform on top of CoverFit: the
// scale multiplies both dimensions around the cover rect's center, then the
// offsets are added in canvas pixels.
func CoverFitWithTransform(aspect float64, target model.Rect, t model.Transform) model.Rect {
	base := CoverFit(aspect, target)
	scale := t.Scale
	if scale <= 0 {
		scale = 1
	}
	w := base.W * scale
	h := base.H * scale
	return model.Rect{
		X: base.X + (base.W-w)/2 + t.OffsetX,
		Y: base.Y + (base.H-h)/2 + t.OffsetY,
		W: w,
		H: h,
	}
}

// Scale returns r scaled by f around its own center.
func Scale(r model.Rect, f float64) model.Rect {
	w, h := r.W*f, r.H*f
	return model.Rect{X: r.X + (r.W-w)/2, Y: r.Y + (r.H-h)/2, W: w, H: h}
}
