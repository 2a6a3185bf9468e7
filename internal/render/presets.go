package render

import (
	"image/color"
	"maps"
	"slices"

	"github.com/fogleman/gg"

	"github.com/fleveque/promo-composer/internal/geometry"
	"github.com/fleveque/promo-composer/internal/model"
)

// preset is a named panel fill. Mesh presets add radial color blobs over the
// base gradient; blob positions and radii are fractions of the panel.
type preset struct {
	angle  float64
	colors []string
	blobs  []blob
}

type blob struct {
	fx, fy, fr float64
	color      string
}

const defaultPreset = "purple"

var presets = map[string]preset{
	"purple": {angle: 180, colors: []string{"#a855f7", "#7c3aed"}},
	"violet": {angle: 180, colors: []string{"#a855f7", "#6b21a8"}},
	"ocean":  {angle: 135, colors: []string{"#06b6d4", "#3b82f6"}},
	"sunset": {angle: 135, colors: []string{"#f97316", "#ec4899"}},
	"forest": {angle: 160, colors: []string{"#22c55e", "#15803d"}},
	"mesh-aurora": {
		angle:  160,
		colors: []string{"#312e81", "#6d28d9", "#0f766e"},
		blobs: []blob{
			{fx: 0.15, fy: 0.1, fr: 0.6, color: "#22d3eecc"},
			{fx: 0.9, fy: 0.35, fr: 0.55, color: "#f472b6b3"},
			{fx: 0.3, fy: 0.95, fr: 0.65, color: "#a3e635a0"},
		},
	},
	"mesh-candy": {
		angle:  120,
		colors: []string{"#fb7185", "#c084fc"},
		blobs: []blob{
			{fx: 0.8, fy: 0.1, fr: 0.5, color: "#fde68acc"},
			{fx: 0.1, fy: 0.7, fr: 0.6, color: "#60a5fab3"},
		},
	},
}

// PresetNames lists the available presets in name order.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}

// panelFill is a resolved panel paint: a linear gradient plus optional blobs.
type panelFill struct {
	gradient geometry.Gradient
	blobs    []resolvedBlob
}

type resolvedBlob struct {
	x, y, r float64
	color   color.NRGBA
}

// resolvePanelFill picks the paint for a panel. Explicit gradients need at least
// two valid colors; otherwise the named preset (or the default preset) is used.
func resolvePanelFill(p model.Panel, rect model.Rect) (panelFill, bool) {
	// A gradient that was asked for but can't be built falls back to a default.
	wantGradient := p.Mode == model.PanelGradient
	if p.Mode != model.PanelPreset && len(p.Colors) >= 2 {
		colors := make([]color.Color, 0, len(p.Colors))
		ok := true
		for _, hex := range p.Colors {
			c, err := geometry.ParseHex(hex)
			if err != nil {
				ok = false
				break
			}
			colors = append(colors, c)
		}
		if ok {
			return panelFill{gradient: geometry.GradientStops(p.Angle, colors, rect)}, true
		}
	}

	name := p.Preset
	known := true
	pr, found := presets[name]
	if !found {
		pr = presets[defaultPreset]
		known = p.Mode != model.PanelPreset || name == ""
	}
	if wantGradient {
		known = false
	}

	colors := make([]color.Color, 0, len(pr.colors))
	for _, hex := range pr.colors {
		colors = append(colors, geometry.MustHex(hex))
	}
	fill := panelFill{gradient: geometry.GradientStops(pr.angle, colors, rect)}
	for _, b := range pr.blobs {
		fill.blobs = append(fill.blobs, resolvedBlob{
			x:     rect.X + b.fx*rect.W,
			y:     rect.Y + b.fy*rect.H,
			r:     b.fr * rect.W,
			color: geometry.MustHex(b.color),
		})
	}
	return fill, known
}

// paint fills a rounded rect with the panel fill.
func (f panelFill) paint(dc *gg.Context, rect model.Rect, radius float64) {
	geometry.RoundedRect(dc, rect.X, rect.Y, rect.W, rect.H, radius)
	dc.SetFillStyle(f.gradient.Pattern())
	dc.Fill()

	for _, b := range f.blobs {
		transparent := b.color
		transparent.A = 0
		radial := gg.NewRadialGradient(b.x, b.y, 0, b.x, b.y, b.r)
		radial.AddColorStop(0, b.color)
		radial.AddColorStop(1, transparent)

		geometry.RoundedRect(dc, rect.X, rect.Y, rect.W, rect.H, radius)
		dc.SetFillStyle(radial)
		dc.Fill()
	}
}
