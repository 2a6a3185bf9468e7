// Package model defines the core data types for the poster composer.
// Types here are plain structs with json tags so the HTTP layer, the CLI and the
// rendering engine can share them without conversion.
package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Format identifies one of the fixed output sizes.
// Go doesn't have enums, so we use typed string constants.
type Format string

const (
	FormatStory     Format = "900x1600"
	FormatSquare    Format = "1200x1200"
	FormatLandscape Format = "1200x628"
)

// AllFormats is the ordered list of supported formats. Bundles follow this order.
var AllFormats = []Format{FormatStory, FormatSquare, FormatLandscape}

// formatAliases maps human-friendly names to formats.
var formatAliases = map[string]Format{
	"story":     FormatStory,
	"square":    FormatSquare,
	"landscape": FormatLandscape,
}

// ParseFormat accepts a format identifier ("900x1600") or one of its aliases ("story").
func ParseFormat(s string) (Format, error) {
	if f, ok := formatAliases[s]; ok {
		return f, nil
	}
	for _, f := range AllFormats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", &ConfigError{Format: s}
}

// Source is an opaque input asset: inline bytes or a URL to fetch.
// A nil *Source means "absent".
type Source struct {
	Name string `json:"name,omitempty"`
	Data []byte `json:"data,omitempty"` // base64 in JSON
	URL  string `json:"url,omitempty"`
}

// Key returns a stable identity for the source, used to detect photo changes.
func (s *Source) Key() string {
	if s == nil {
		return ""
	}
	if len(s.Data) > 0 {
		sum := sha256.Sum256(s.Data)
		return "sha256:" + hex.EncodeToString(sum[:])
	}
	return "url:" + s.URL
}

// Empty reports whether the source carries nothing to decode.
func (s *Source) Empty() bool {
	return s == nil || (len(s.Data) == 0 && s.URL == "")
}

// Content is the externally supplied, per-render text and imagery.
type Content struct {
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
	CTA      string  `json:"cta"`
	Photo    *Source `json:"photo,omitempty"`
	Logo     *Source `json:"logo,omitempty"`
}

// PanelMode selects how the decorative panel is filled.
type PanelMode string

const (
	PanelGradient PanelMode = "gradient"
	PanelPreset   PanelMode = "preset"
	PanelAsset    PanelMode = "asset"
)

// Panel configures the decorative panel behind the text block.
type Panel struct {
	Visible bool      `json:"visible"`
	Mode    PanelMode `json:"mode"`
	// Angle is in degrees, CSS convention: 0 points up, 90 points right.
	Angle  float64  `json:"angle"`
	Colors []string `json:"colors,omitempty"`
	Preset string   `json:"preset,omitempty"`
	Asset  *Source  `json:"asset,omitempty"`
	// MaskWithGradient paints the gradient through the asset's alpha instead of
	// drawing the asset's own pixels.
	MaskWithGradient bool `json:"mask_with_gradient"`
}

// Style holds the output format and background choices.
type Style struct {
	Format    Format `json:"format"`
	Panel     Panel  `json:"panel"`
	QRCodeURL string `json:"qr_code_url,omitempty"`
}

// DefaultStyle is the purple panel on a story canvas the editor starts with.
func DefaultStyle() Style {
	return Style{
		Format: FormatStory,
		Panel: Panel{
			Visible: true,
			Mode:    PanelPreset,
			Preset:  "purple",
		},
	}
}

// Point is a position in canvas pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in canvas pixel space.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Within reports whether r lies fully inside outer.
func (r Rect) Within(outer Rect) bool {
	return r.X >= outer.X && r.Y >= outer.Y && r.Right() <= outer.Right() && r.Bottom() <= outer.Bottom()
}

// Intersects reports whether r and o share any interior area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Transform is the user-adjustable photo transform.
type Transform struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
}

// IdentityTransform is the transform every new photo starts from.
func IdentityTransform() Transform {
	return Transform{Scale: 1}
}
