// Package render draws posters. The Renderer runs a fixed, ordered pipeline of
// layers onto a gg.Context; every image-backed layer has a documented fallback,
// so a bad photo, logo or panel asset never fails the whole render.
package render

import (
	"context"
	_ "embed"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/geometry"
	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/model"
)

//go:embed assets/default_logo.svg
var defaultLogoSVG []byte

// DefaultLogo returns the bundled logo used when no logo is supplied.
func DefaultLogo() []byte {
	return append([]byte(nil), defaultLogoSVG...)
}

// Background and placeholder constants.
const (
	backgroundOverscan   = 1.05
	backgroundBlur       = 15.0
	backgroundDownscale  = 4
	backgroundBrightness = 0.7
	parallax             = 0.15

	placeholderLabel = "Upload an image"
	lockupText       = "headout"
)

var (
	fallbackFrom = geometry.MustHex("#60a5fa")
	fallbackTo   = geometry.MustHex("#3b82f6")

	white         = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	subtitleColor = color.NRGBA{R: 255, G: 255, B: 255, A: 230}
	placeholderBg = color.NRGBA{R: 255, G: 255, B: 255, A: 51}
	placeholderFg = color.NRGBA{R: 255, G: 255, B: 255, A: 204}
	ctaLabelColor = color.NRGBA{A: 255}
	handleFill    = color.NRGBA{R: 255, G: 255, B: 255, A: 230}
	handleStroke  = color.NRGBA{R: 17, G: 17, B: 17, A: 255}
)

// LayerSource records what a layer was actually drawn from.
type LayerSource string

const (
	LayerSupplied LayerSource = "supplied"
	LayerDefault  LayerSource = "default"
	LayerFallback LayerSource = "fallback"
	LayerNone     LayerSource = "none"
)

// Options controls render mode.
type Options struct {
	// Interactive draws editing affordances (the resize handle). Exports leave it off.
	Interactive bool
}

// Result is the explicit outcome of one render.
type Result struct {
	// PhotoDecoded is true when the photo decoded and was drawn. Hit testing
	// and the resize handle depend on it.
	PhotoDecoded bool `json:"photo_decoded"`

	Background LayerSource `json:"background"`
	Photo      LayerSource `json:"photo"`
	Panel      LayerSource `json:"panel"`
	Logo       LayerSource `json:"logo"`

	// PhotoRect is where the photo bitmap was drawn before clipping.
	PhotoRect model.Rect `json:"photo_rect"`

	TitleLines    []string   `json:"title_lines"`
	SubtitleLines []string   `json:"subtitle_lines"`
	CTARect       model.Rect `json:"cta_rect"`
	CTALabel      string     `json:"cta_label"`
	QR            bool       `json:"qr"`
	Handle        bool       `json:"handle"`
}

// Renderer composes posters. It is safe for concurrent use: every render gets
// its own font faces and the decoder holds no per-render state.
type Renderer struct {
	fonts       *Fonts
	decoder     *Decoder
	defaultLogo []byte
	logger      *zap.Logger
}

// NewRenderer creates a renderer. A nil defaultLogo uses the bundled SVG.
func NewRenderer(fonts *Fonts, decoder *Decoder, defaultLogo []byte, logger *zap.Logger) *Renderer {
	if defaultLogo == nil {
		defaultLogo = defaultLogoSVG
	}
	return &Renderer{
		fonts:       fonts,
		decoder:     decoder,
		defaultLogo: defaultLogo,
		logger:      logger,
	}
}

// Fonts returns the renderer's font set, which also serves as the layout measurer.
func (r *Renderer) Fonts() *Fonts { return r.fonts }

// RenderImage renders onto a fresh canvas of the descriptor's size.
func (r *Renderer) RenderImage(ctx context.Context, content model.Content, style model.Style, d layout.Descriptor, t model.Transform, opts Options) (image.Image, *Result, error) {
	dc := gg.NewContext(d.Width, d.Height)
	res, err := r.Render(ctx, dc, content, style, d, t, opts)
	if err != nil {
		return nil, nil, err
	}
	return dc.Image(), res, nil
}

// Render draws every layer in order onto dc. Decodes for the photo, logo and
// panel asset start concurrently and are awaited at the stage that needs them.
// Only context cancellation returns an error.
func (r *Renderer) Render(ctx context.Context, dc *gg.Context, content model.Content, style model.Style, d layout.Descriptor, t model.Transform, opts Options) (*Result, error) {
	res := &Result{Photo: LayerNone, Panel: LayerNone}

	photoJob := r.decoder.Start(ctx, "photo", content.Photo, image.Point{X: int(d.Photo.W)})
	logoJob := r.decoder.Start(ctx, "logo", content.Logo, image.Point{X: int(d.Logo.Width)})
	var assetJob *Pending
	if style.Panel.Visible && style.Panel.Mode == model.PanelAsset {
		assetJob = r.decoder.Start(ctx, "panel", style.Panel.Asset, image.Point{X: int(d.Panel.W), Y: int(d.Panel.H)})
	}

	photo, err := r.await(ctx, photoJob, "photo")
	if err != nil {
		return nil, err
	}

	r.drawBackground(dc, d, photo, t, res)
	r.drawPhoto(dc, d, content.Photo, photo, t, res)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if style.Panel.Visible {
		var asset image.Image
		if assetJob != nil {
			if asset, err = r.await(ctx, assetJob, "panel"); err != nil {
				return nil, err
			}
		}
		r.drawPanel(dc, d, style.Panel, asset, res)
	}

	logo, err := r.await(ctx, logoJob, "logo")
	if err != nil {
		return nil, err
	}
	if err := r.drawLogo(ctx, dc, d, logo, res); err != nil {
		return nil, err
	}

	lastTitle := r.drawTitle(dc, d, content.Title, res)
	lastSubtitle := r.drawSubtitle(dc, d, content.Subtitle, lastTitle, res)
	r.drawCTA(dc, d, content.CTA, lastSubtitle, res)

	if style.QRCodeURL != "" {
		r.drawQR(dc, d, style.QRCodeURL, res)
	}

	if opts.Interactive && res.PhotoDecoded {
		drawHandle(dc, d)
		res.Handle = true
	}

	return res, ctx.Err()
}

// await waits for a decode. Decode failures are logged and reported as a nil
// image so the stage falls back; only cancellation is returned as an error.
func (r *Renderer) await(ctx context.Context, p *Pending, layer string) (image.Image, error) {
	img, err := p.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		r.logger.Warn("layer decode failed, using fallback",
			zap.String("layer", layer),
			zap.Error(err),
		)
		return nil, nil
	}
	return img, nil
}

// drawBackground fills the canvas with the blurred, darkened photo, or the
// fallback gradient when there is no usable photo.
func (r *Renderer) drawBackground(dc *gg.Context, d layout.Descriptor, photo image.Image, t model.Transform, res *Result) {
	canvas := d.Canvas()
	if photo == nil {
		g := gg.NewLinearGradient(0, 0, canvas.W, canvas.H)
		g.AddColorStop(0, fallbackFrom)
		g.AddColorStop(1, fallbackTo)
		dc.DrawRectangle(0, 0, canvas.W, canvas.H)
		dc.SetFillStyle(g)
		dc.Fill()
		res.Background = LayerFallback
		return
	}

	// Blur a quarter-size copy; sigma is scaled down to match.
	b := photo.Bounds()
	small := imaging.Resize(photo, max(1, b.Dx()/backgroundDownscale), 0, imaging.Linear)
	blurred := imaging.Blur(small, backgroundBlur/backgroundDownscale)
	darkened := imaging.AdjustFunc(blurred, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: uint8(float64(c.R) * backgroundBrightness),
			G: uint8(float64(c.G) * backgroundBrightness),
			B: uint8(float64(c.B) * backgroundBrightness),
			A: c.A,
		}
	})

	rect := backgroundRect(aspectOf(photo), canvas, t)
	drawImageInRect(dc, darkened, rect)
	res.Background = LayerSupplied
}

// backgroundRect follows the foreground transform at a dampened ratio and
// never leaves an edge of the canvas uncovered.
func backgroundRect(aspect float64, canvas model.Rect, t model.Transform) model.Rect {
	scale := 1 + (t.Scale-1)*parallax
	if scale < 1 {
		scale = 1
	}
	rect := geometry.Scale(geometry.CoverFit(aspect, canvas), backgroundOverscan*scale)
	rect.X = clamp(rect.X+t.OffsetX*parallax, canvas.W-rect.W, 0)
	rect.Y = clamp(rect.Y+t.OffsetY*parallax, canvas.H-rect.H, 0)
	return rect
}

// drawPhoto draws the photo clipped to the photo rect, or the placeholder.
func (r *Renderer) drawPhoto(dc *gg.Context, d layout.Descriptor, src *model.Source, photo image.Image, t model.Transform, res *Result) {
	if photo == nil {
		r.drawPlaceholder(dc, d)
		if src.Empty() {
			res.Photo = LayerDefault
		} else {
			res.Photo = LayerFallback
		}
		return
	}

	rect := geometry.CoverFitWithTransform(aspectOf(photo), d.Photo, t)

	dc.Push()
	geometry.RoundedRect(dc, d.Photo.X, d.Photo.Y, d.Photo.W, d.Photo.H, d.PhotoRadius)
	dc.Clip()
	drawImageInRect(dc, photo, rect)
	// Pop restores the matrix but not the clip mask.
	dc.ResetClip()
	dc.Pop()

	res.PhotoDecoded = true
	res.Photo = LayerSupplied
	res.PhotoRect = rect
}

func (r *Renderer) drawPlaceholder(dc *gg.Context, d layout.Descriptor) {
	p := d.Photo
	geometry.RoundedRect(dc, p.X, p.Y, p.W, p.H, d.PhotoRadius)
	dc.SetColor(placeholderBg)
	dc.Fill()

	dc.SetFontFace(r.fonts.Face(d.Subtitle.FontSize, false))
	dc.SetColor(placeholderFg)
	dc.DrawStringAnchored(placeholderLabel, p.X+p.W/2, p.Y+p.H/2, 0.5, 0.5)
}

// drawPanel paints the decorative panel from the supplied asset, falling back
// to the gradient or preset fill.
func (r *Renderer) drawPanel(dc *gg.Context, d layout.Descriptor, p model.Panel, asset image.Image, res *Result) {
	rect := d.Panel

	if asset != nil {
		w, h := int(math.Round(rect.W)), int(math.Round(rect.H))
		fitted := imaging.Resize(asset, w, h, imaging.Lanczos)

		if p.MaskWithGradient {
			fill, _ := resolvePanelFill(p, model.Rect{W: rect.W, H: rect.H})
			off := gg.NewContext(w, h)
			off.DrawRectangle(0, 0, rect.W, rect.H)
			off.SetFillStyle(fill.gradient.Pattern())
			off.Fill()

			// Keep the gradient only where the asset is opaque.
			masked := image.NewNRGBA(image.Rect(0, 0, w, h))
			draw.DrawMask(masked, masked.Bounds(), off.Image(), image.Point{}, fitted, image.Point{}, draw.Src)
			dc.DrawImage(masked, int(rect.X), int(rect.Y))
		} else {
			dc.DrawImage(fitted, int(rect.X), int(rect.Y))
		}
		res.Panel = LayerSupplied
		return
	}

	fill, known := resolvePanelFill(p, rect)
	fill.paint(dc, rect, d.PanelRadius)

	switch {
	case p.Mode == model.PanelAsset:
		res.Panel = LayerFallback
	case !known:
		res.Panel = LayerDefault
	default:
		res.Panel = LayerSupplied
	}
}

// drawLogo draws the supplied logo, then the default logo, then a text lockup.
func (r *Renderer) drawLogo(ctx context.Context, dc *gg.Context, d layout.Descriptor, logo image.Image, res *Result) error {
	if logo != nil {
		drawLogoImage(dc, d.Logo, logo)
		res.Logo = LayerSupplied
		return nil
	}

	def, err := r.decoder.Decode(ctx, "default logo", &model.Source{Data: r.defaultLogo}, image.Point{X: int(d.Logo.Width)})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		drawLogoImage(dc, d.Logo, def)
		res.Logo = LayerDefault
		return nil
	}
	r.logger.Warn("default logo unusable, drawing text lockup", zap.Error(err))

	size := d.Logo.MaxHeight * 0.6
	dc.SetFontFace(r.fonts.Face(size, true))
	dc.SetColor(white)
	dc.DrawString(lockupText, d.Logo.X, d.Logo.Y+d.Logo.MaxHeight*0.7)
	res.Logo = LayerFallback
	return nil
}

// drawLogoImage scales img to the slot width keeping its aspect ratio,
// shrinking further if it would exceed the slot's max height.
func drawLogoImage(dc *gg.Context, slot layout.LogoSlot, img image.Image) {
	aspect := aspectOf(img)
	w := slot.Width
	h := w / aspect
	if h > slot.MaxHeight {
		h = slot.MaxHeight
		w = h * aspect
	}
	scaled := imaging.Resize(img, max(1, int(math.Round(w))), max(1, int(math.Round(h))), imaging.Lanczos)
	dc.DrawImage(scaled, int(slot.X), int(slot.Y))
}

// drawTitle draws the wrapped title and returns the last baseline.
func (r *Renderer) drawTitle(dc *gg.Context, d layout.Descriptor, title string, res *Result) float64 {
	tb := d.Title
	lines := layout.Clamp(layout.Wrap(title, tb.MaxWidth, r.measure(tb.FontSize, true)), tb.MaxLines)

	dc.SetFontFace(r.fonts.Face(tb.FontSize, true))
	dc.SetColor(white)
	for i, line := range lines {
		dc.DrawString(line, tb.X, tb.Y+float64(i)*tb.Advance())
	}

	res.TitleLines = lines
	return tb.Y + float64(max(len(lines), 1)-1)*tb.Advance()
}

// drawSubtitle draws the wrapped subtitle below the title and returns its last baseline.
func (r *Renderer) drawSubtitle(dc *gg.Context, d layout.Descriptor, subtitle string, lastTitle float64, res *Result) float64 {
	sb := d.Subtitle
	first := d.SubtitleBaseline(lastTitle)
	if strings.TrimSpace(subtitle) == "" {
		res.SubtitleLines = nil
		return first
	}

	lines := layout.Clamp(layout.Wrap(subtitle, d.Title.MaxWidth, r.measure(sb.FontSize, false)), sb.MaxLines)

	dc.SetFontFace(r.fonts.Face(sb.FontSize, false))
	dc.SetColor(subtitleColor)
	for i, line := range lines {
		dc.DrawString(line, d.Title.X, first+float64(i)*sb.Advance())
	}

	res.SubtitleLines = lines
	return first + float64(len(lines)-1)*sb.Advance()
}

// drawCTA draws the call-to-action pill. An empty label draws nothing.
func (r *Renderer) drawCTA(dc *gg.Context, d layout.Descriptor, label string, lastSubtitle float64, res *Result) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	cb := d.CTA
	measure := r.measure(cb.FontSize, true)

	w := cb.Width
	if w <= 0 {
		w = measure(label) + 2*cb.Padding
	}
	w = math.Min(w, cb.MaxWidth)
	label = fitLabel(label, w-2*cb.Padding, measure)

	var x, y float64
	if cb.Absolute {
		x = cb.Slot.Right() - w
		y = cb.Slot.Y
	} else {
		x = cb.Slot.X
		y = math.Min(lastSubtitle+cb.Gap, cb.Slot.Y)
	}

	geometry.RoundedRect(dc, x, y, w, cb.Height, cb.Radius)
	dc.SetColor(white)
	dc.Fill()

	dc.SetFontFace(r.fonts.Face(cb.FontSize, true))
	dc.SetColor(ctaLabelColor)
	dc.DrawStringAnchored(label, x+w/2, y+cb.Height/2, 0.5, 0.35)

	res.CTARect = model.Rect{X: x, Y: y, W: w, H: cb.Height}
	res.CTALabel = label
}

// fitLabel truncates label with an ellipsis until it fits maxWidth.
func fitLabel(label string, maxWidth float64, measure func(string) float64) string {
	if measure(label) <= maxWidth {
		return label
	}
	runes := []rune(label)
	for n := len(runes) - 1; n > 0; n-- {
		candidate := strings.TrimRight(string(runes[:n]), " ") + "…"
		if measure(candidate) <= maxWidth {
			return candidate
		}
	}
	return "…"
}

func (r *Renderer) drawQR(dc *gg.Context, d layout.Descriptor, url string, res *Result) {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		r.logger.Warn("could not encode QR code", zap.String("url", url), zap.Error(err))
		return
	}
	q.DisableBorder = true

	rect := d.QR
	pad := rect.W * 0.08
	geometry.RoundedRect(dc, rect.X, rect.Y, rect.W, rect.H, pad)
	dc.SetColor(white)
	dc.Fill()

	img := q.Image(int(rect.W - 2*pad))
	dc.DrawImage(img, int(rect.X+pad), int(rect.Y+pad))
	res.QR = true
}

func drawHandle(dc *gg.Context, d layout.Descriptor) {
	h := d.Handle()
	dc.DrawRectangle(h.X, h.Y, h.W, h.H)
	dc.SetColor(handleFill)
	dc.FillPreserve()
	dc.SetColor(handleStroke)
	dc.SetLineWidth(2)
	dc.Stroke()
}

func (r *Renderer) measure(size float64, bold bool) func(string) float64 {
	return func(s string) float64 {
		return r.fonts.MeasureString(s, size, bold)
	}
}

// drawImageInRect draws img stretched to rect through the context's matrix,
// so the current clip applies.
func drawImageInRect(dc *gg.Context, img image.Image, rect model.Rect) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	dc.Push()
	dc.Translate(rect.X, rect.Y)
	dc.Scale(rect.W/float64(b.Dx()), rect.H/float64(b.Dy()))
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	dc.Pop()
}

func aspectOf(img image.Image) float64 {
	b := img.Bounds()
	if b.Dy() == 0 {
		return 1
	}
	return float64(b.Dx()) / float64(b.Dy())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
