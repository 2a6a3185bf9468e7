// Package layout maps an output format and the current title to the fully
// resolved pixel geometry of a poster. All per-format numbers live in the
// entries table below; adding a format means adding one entry.
package layout

import (
	"github.com/fleveque/promo-composer/internal/model"
)

// Measurer measures rendered text width in canvas pixels.
// The render package's font set implements it.
type Measurer interface {
	MeasureString(text string, fontSize float64, bold bool) float64
}

// LogoSlot anchors the logo. Height follows the logo's aspect ratio, capped at MaxHeight.
type LogoSlot struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	MaxHeight float64 `json:"max_height"`
}

// Bounds returns the largest area the logo may occupy.
func (l LogoSlot) Bounds() model.Rect {
	return model.Rect{X: l.X, Y: l.Y, W: l.Width, H: l.MaxHeight}
}

// TitleBlock positions the title. Y is the first line's baseline.
type TitleBlock struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontSize   float64 `json:"font_size"`
	MaxWidth   float64 `json:"max_width"`
	LineHeight float64 `json:"line_height"`
	MaxLines   int     `json:"max_lines"`
}

// Advance is the baseline-to-baseline distance.
func (t TitleBlock) Advance() float64 { return t.FontSize * t.LineHeight }

// SubtitleBlock sizes the subtitle. Offset is added to the first baseline and
// is negative to tighten the gap below the title.
type SubtitleBlock struct {
	FontSize   float64 `json:"font_size"`
	LineHeight float64 `json:"line_height"`
	Offset     float64 `json:"offset"`
	MaxLines   int     `json:"max_lines"`
}

// Advance is the baseline-to-baseline distance.
func (s SubtitleBlock) Advance() float64 { return s.FontSize * s.LineHeight }

// CTABlock sizes the call-to-action pill.
type CTABlock struct {
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
	Padding  float64 `json:"padding"`
	Radius   float64 `json:"radius"`
	// Width is a fixed pill width; zero sizes the pill to its label.
	Width    float64 `json:"width"`
	MaxWidth float64 `json:"max_width"`
	// Gap separates the last subtitle baseline from the pill in flow layouts.
	Gap float64 `json:"gap"`
	// Absolute pins the pill to the panel's bottom-right corner, Inset from its edges.
	Absolute bool    `json:"absolute"`
	Inset    float64 `json:"inset"`
	// Slot is the area reserved for the pill; the drawn pill always fits inside it.
	Slot model.Rect `json:"slot"`
}

// Descriptor is the resolved geometry for one format and one title line count.
type Descriptor struct {
	Format      model.Format  `json:"format"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Panel       model.Rect    `json:"panel"`
	PanelRadius float64       `json:"panel_radius"`
	Logo        LogoSlot      `json:"logo"`
	Title       TitleBlock    `json:"title"`
	Subtitle    SubtitleBlock `json:"subtitle"`
	CTA         CTABlock      `json:"cta"`
	Photo       model.Rect    `json:"photo"`
	PhotoRadius float64       `json:"photo_radius"`
	HandleSize  float64       `json:"handle_size"`
	ScaleMin    float64       `json:"scale_min"`
	ScaleMax    float64       `json:"scale_max"`
	QR          model.Rect    `json:"qr"`
	TitleLines  int           `json:"title_lines"`
}

// Canvas returns the full canvas rect.
func (d Descriptor) Canvas() model.Rect {
	return model.Rect{W: float64(d.Width), H: float64(d.Height)}
}

// Handle returns the resize hit zone at the photo rect's bottom-right corner.
func (d Descriptor) Handle() model.Rect {
	return model.Rect{
		X: d.Photo.Right() - d.HandleSize,
		Y: d.Photo.Bottom() - d.HandleSize,
		W: d.HandleSize,
		H: d.HandleSize,
	}
}

// ClampScale bounds a scale factor to this format's range.
func (d Descriptor) ClampScale(s float64) float64 {
	if s < d.ScaleMin {
		return d.ScaleMin
	}
	if s > d.ScaleMax {
		return d.ScaleMax
	}
	return s
}

// SubtitleBaseline returns the first subtitle baseline given the last title baseline.
func (d Descriptor) SubtitleBaseline(lastTitleBaseline float64) float64 {
	return lastTitleBaseline + d.Subtitle.Advance() + d.Subtitle.Offset
}

// photoPlacement describes how an entry derives its photo rect.
type photoPlacement struct {
	// fixed is used as-is when belowPanel is false.
	fixed model.Rect

	// belowPanel places the photo under the panel, panel-wide, from gap below
	// the panel's bottom edge down to bottom.
	belowPanel  bool
	gap, bottom float64
}

type entry struct {
	base Descriptor
	// panelPad, when set, makes the panel end panelPad below the CTA slot
	// instead of using the base panel height.
	panelPad float64
	photo    photoPlacement
}

// entries holds the per-format constants.
var entries = map[model.Format]entry{
	model.FormatStory: {
		base: Descriptor{
			Format:      model.FormatStory,
			Width:       900,
			Height:      1600,
			Panel:       model.Rect{X: 70, Y: 90, W: 760},
			PanelRadius: 40,
			Logo:        LogoSlot{X: 120, Y: 130, Width: 180, MaxHeight: 80},
			Title:       TitleBlock{X: 120, Y: 270, FontSize: 54, MaxWidth: 660, LineHeight: 1.2, MaxLines: 4},
			Subtitle:    SubtitleBlock{FontSize: 32, LineHeight: 1.4, Offset: -4, MaxLines: 2},
			CTA:         CTABlock{Height: 60, FontSize: 24, Padding: 40, Radius: 30, MaxWidth: 360, Gap: 36},
			PhotoRadius: 30,
			HandleSize:  30,
			ScaleMin:    0.1,
			ScaleMax:    5.0,
			QR:          model.Rect{X: 700, Y: 110, W: 90, H: 90},
		},
		panelPad: 40,
		photo:    photoPlacement{belowPanel: true, gap: 30, bottom: 1510},
	},
	model.FormatSquare: {
		base: Descriptor{
			Format:      model.FormatSquare,
			Width:       1200,
			Height:      1200,
			Panel:       model.Rect{X: 60, Y: 660, W: 1080, H: 480},
			PanelRadius: 40,
			Logo:        LogoSlot{X: 100, Y: 690, Width: 160, MaxHeight: 60},
			Title:       TitleBlock{X: 100, Y: 820, FontSize: 56, MaxWidth: 600, LineHeight: 1.2, MaxLines: 3},
			Subtitle:    SubtitleBlock{FontSize: 30, LineHeight: 1.4, Offset: -4, MaxLines: 2},
			CTA:         CTABlock{Height: 70, FontSize: 28, Padding: 44, Radius: 35, MaxWidth: 340, Absolute: true, Inset: 40},
			PhotoRadius: 40,
			HandleSize:  24,
			ScaleMin:    0.1,
			ScaleMax:    3.0,
			QR:          model.Rect{X: 1000, Y: 690, W: 100, H: 100},
		},
		photo: photoPlacement{fixed: model.Rect{X: 60, Y: 60, W: 1080, H: 560}},
	},
	model.FormatLandscape: {
		base: Descriptor{
			Format:      model.FormatLandscape,
			Width:       1200,
			Height:      628,
			Panel:       model.Rect{X: 40, Y: 40, W: 560, H: 548},
			PanelRadius: 32,
			Logo:        LogoSlot{X: 80, Y: 70, Width: 140, MaxHeight: 50},
			Title:       TitleBlock{X: 80, Y: 190, FontSize: 44, MaxWidth: 480, LineHeight: 1.2, MaxLines: 3},
			Subtitle:    SubtitleBlock{FontSize: 24, LineHeight: 1.4, Offset: -4, MaxLines: 2},
			CTA:         CTABlock{Height: 52, FontSize: 22, Padding: 32, Radius: 26, MaxWidth: 300, Gap: 30},
			PhotoRadius: 32,
			HandleSize:  20,
			ScaleMin:    0.1,
			ScaleMax:    5.0,
			QR:          model.Rect{X: 500, Y: 60, W: 70, H: 70},
		},
		photo: photoPlacement{fixed: model.Rect{X: 640, Y: 40, W: 520, H: 548}},
	},
}

// Registry resolves layouts. It holds the measurer used to count title lines.
type Registry struct {
	measurer Measurer
}

// NewRegistry creates a registry that measures text with m.
func NewRegistry(m Measurer) *Registry {
	return &Registry{measurer: m}
}

// Formats returns the supported formats in bundle order.
func (r *Registry) Formats() []model.Format {
	return append([]model.Format(nil), model.AllFormats...)
}

// Layout returns the descriptor for format with anchors adjusted to the number
// of lines title wraps to. Unknown formats fail with *model.ConfigError.
func (r *Registry) Layout(format model.Format, title string) (Descriptor, error) {
	e, ok := entries[format]
	if !ok {
		return Descriptor{}, &model.ConfigError{Format: string(format)}
	}
	d := e.base

	lines := len(r.WrapTitle(d, title))
	if lines < 1 {
		lines = 1
	}
	if lines > d.Title.MaxLines {
		lines = d.Title.MaxLines
	}
	d.TitleLines = lines

	// Reserve the full subtitle block so the CTA slot holds for any subtitle.
	lastTitle := d.Title.Y + float64(lines-1)*d.Title.Advance()
	lastSubtitle := d.SubtitleBaseline(lastTitle) + float64(d.Subtitle.MaxLines-1)*d.Subtitle.Advance()

	if !d.CTA.Absolute {
		d.CTA.Slot = model.Rect{
			X: d.Title.X,
			Y: lastSubtitle + d.CTA.Gap,
			W: d.CTA.MaxWidth,
			H: d.CTA.Height,
		}
	}

	if e.panelPad > 0 {
		d.Panel.H = d.CTA.Slot.Bottom() + e.panelPad - d.Panel.Y
	}

	if d.CTA.Absolute {
		d.CTA.Slot = model.Rect{
			X: d.Panel.Right() - d.CTA.Inset - d.CTA.MaxWidth,
			Y: d.Panel.Bottom() - d.CTA.Inset - d.CTA.Height,
			W: d.CTA.MaxWidth,
			H: d.CTA.Height,
		}
	}

	if e.photo.belowPanel {
		top := d.Panel.Bottom() + e.photo.gap
		d.Photo = model.Rect{
			X: d.Panel.X,
			Y: top,
			W: d.Panel.W,
			H: e.photo.bottom - top,
		}
	} else {
		d.Photo = e.photo.fixed
	}

	return d, nil
}

// WrapTitle wraps title at the descriptor's title font and width.
func (r *Registry) WrapTitle(d Descriptor, title string) []string {
	return Wrap(title, d.Title.MaxWidth, func(s string) float64 {
		return r.measurer.MeasureString(s, d.Title.FontSize, true)
	})
}

// WrapSubtitle wraps subtitle at the descriptor's subtitle font and the title width.
func (r *Registry) WrapSubtitle(d Descriptor, subtitle string) []string {
	return Wrap(subtitle, d.Title.MaxWidth, func(s string) float64 {
		return r.measurer.MeasureString(s, d.Subtitle.FontSize, false)
	})
}
