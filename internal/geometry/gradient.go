package geometry

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/fogleman/gg"

	"github.com/fleveque/promo-composer/internal/model"
)

// Stop is one color stop; Offset is a fraction in [0,1].
type Stop struct {
	Offset float64
	Color  color.Color
}

// Gradient is a resolved linear gradient in canvas space.
type Gradient struct {
	P0, P1 model.Point
	Stops  []Stop
}

// GradientStops resolves a CSS-style angle (0 = up, clockwise) over rect.
// The endpoints lie on the rect's bounding circle, on the line through the
// center along the angle. Colors are spaced evenly at i/(n-1).
func GradientStops(angleDeg float64, colors []color.Color, rect model.Rect) Gradient {
	cx := rect.X + rect.W/2
	cy := rect.Y + rect.H/2
	radius := math.Hypot(rect.W, rect.H) / 2

	rad := angleDeg * math.Pi / 180
	dx := math.Sin(rad) * radius
	dy := -math.Cos(rad) * radius

	g := Gradient{
		P0: model.Point{X: cx - dx, Y: cy - dy},
		P1: model.Point{X: cx + dx, Y: cy + dy},
	}

	n := len(colors)
	for i, c := range colors {
		offset := 0.0
		if n > 1 {
			offset = float64(i) / float64(n-1)
		}
		g.Stops = append(g.Stops, Stop{Offset: offset, Color: c})
	}
	return g
}

// Pattern converts the gradient into a gg fill pattern.
func (g Gradient) Pattern() gg.Gradient {
	grad := gg.NewLinearGradient(g.P0.X, g.P0.Y, g.P1.X, g.P1.Y)
	for _, s := range g.Stops {
		grad.AddColorStop(s.Offset, s.Color)
	}
	return grad
}

// ParseHex converts "#rgb", "#rrggbb" or "#rrggbbaa" (hash optional) to a color.
func ParseHex(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")

	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}

	var r, g, b uint8
	a := uint8(255)
	var err error
	switch len(hex) {
	case 6:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	case 8:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x%02x", &r, &g, &b, &a)
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color: %q (expected 3, 6 or 8 characters)", hex)
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parsing hex color %q: %w", hex, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

// MustHex is ParseHex for compile-time constants.
func MustHex(hex string) color.NRGBA {
	c, err := ParseHex(hex)
	if err != nil {
		panic(err)
	}
	return c
}
