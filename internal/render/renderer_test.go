package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/geometry"
	"github.com/fleveque/promo-composer/internal/gesture"
	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/model"
)

func newTestRenderer(defaultLogo []byte) *Renderer {
	logger := zap.NewNop()
	return NewRenderer(DefaultFonts(), NewDecoder(logger), defaultLogo, logger)
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func describe(t *testing.T, r *Renderer, format model.Format, title string) layout.Descriptor {
	t.Helper()
	d, err := layout.NewRegistry(r.Fonts()).Layout(format, title)
	require.NoError(t, err)
	return d
}

func rgbaAt(img image.Image, x, y float64) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(int(x), int(y))).(color.NRGBA)
}

func sampleContent() model.Content {
	return model.Content{Title: "Hello\nWorld", Subtitle: "Test", CTA: "Go"}
}

func TestRender_NoPhotoNoLogo(t *testing.T) {
	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatStory, "Hello\nWorld")
	require.Equal(t, 900, d.Width)
	require.Equal(t, 1600, d.Height)

	img, res, err := r.RenderImage(context.Background(), sampleContent(), model.DefaultStyle(), d, model.IdentityTransform(), Options{Interactive: true})
	require.NoError(t, err)

	assert.Equal(t, LayerFallback, res.Background)
	assert.Equal(t, LayerDefault, res.Photo)
	assert.False(t, res.PhotoDecoded)
	assert.Equal(t, LayerSupplied, res.Panel)
	assert.Equal(t, LayerDefault, res.Logo)
	assert.Equal(t, []string{"Hello", "World"}, res.TitleLines)
	assert.Equal(t, []string{"Test"}, res.SubtitleLines)
	assert.Equal(t, "Go", res.CTALabel)
	assert.False(t, res.Handle, "no handle without a photo")

	assert.True(t, res.CTARect.Within(d.Panel))
	assert.False(t, res.CTARect.Intersects(d.Photo))

	// Top-left corner shows the start of the fallback gradient.
	corner := rgbaAt(img, 1, 1)
	assert.InDelta(t, 0x60, int(corner.R), 3)
	assert.InDelta(t, 0xa5, int(corner.G), 3)
	assert.InDelta(t, 0xfa, int(corner.B), 3)
}

func TestRender_PhotoDecodeFailureFallsBackToPlaceholder(t *testing.T) {
	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatStory, "Hello\nWorld")

	content := sampleContent()
	content.Photo = &model.Source{Name: "broken.jpg", Data: []byte("definitely not an image")}

	_, res, err := r.RenderImage(context.Background(), content, model.DefaultStyle(), d, model.IdentityTransform(), Options{Interactive: true})
	require.NoError(t, err)

	assert.False(t, res.PhotoDecoded)
	assert.Equal(t, LayerFallback, res.Photo)
	assert.Equal(t, LayerFallback, res.Background)
	assert.False(t, res.Handle)

	// Everything else still renders.
	assert.Equal(t, LayerDefault, res.Logo)
	assert.Equal(t, []string{"Hello", "World"}, res.TitleLines)
	assert.Equal(t, []string{"Test"}, res.SubtitleLines)
	assert.Equal(t, "Go", res.CTALabel)
}

func TestRender_PhotoFollowsGestureTransform(t *testing.T) {
	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatStory, "Hello\nWorld")

	content := sampleContent()
	content.Photo = &model.Source{Data: solidPNG(t, 400, 300, color.NRGBA{R: 255, A: 255})}

	c := gesture.NewController(d)
	c.SetPhoto(content.Photo)
	start := model.Point{X: d.Photo.X + d.Photo.W/2, Y: d.Photo.Y + d.Photo.H/2}
	require.True(t, c.PointerDown(start))
	c.PointerMove(model.Point{X: start.X + 50, Y: start.Y + 50})
	c.PointerUp()

	corner := model.Point{X: d.Photo.Right() - 2, Y: d.Photo.Bottom() - 2}
	require.True(t, c.PointerDown(corner))
	c.PointerMove(model.Point{X: corner.X + 30, Y: corner.Y + 30})
	c.PointerUp()

	tr := c.Transform()
	assert.InDelta(t, 50.0, tr.OffsetX, 1e-9)
	assert.InDelta(t, 50.0, tr.OffsetY, 1e-9)
	assert.Greater(t, tr.Scale, 1.0)
	assert.LessOrEqual(t, tr.Scale, d.ScaleMax)

	for _, interactive := range []bool{true, false} {
		img, res, err := r.RenderImage(context.Background(), content, model.DefaultStyle(), d, tr, Options{Interactive: interactive})
		require.NoError(t, err)

		assert.True(t, res.PhotoDecoded)
		assert.Equal(t, LayerSupplied, res.Photo)
		assert.Equal(t, LayerSupplied, res.Background)
		assert.Equal(t, interactive, res.Handle)

		want := geometry.CoverFitWithTransform(400.0/300.0, d.Photo, tr)
		assert.InDelta(t, want.X, res.PhotoRect.X, 1e-9)
		assert.InDelta(t, want.Y, res.PhotoRect.Y, 1e-9)
		assert.InDelta(t, want.W, res.PhotoRect.W, 1e-9)

		inside := rgbaAt(img, start.X, start.Y)
		assert.Greater(t, int(inside.R), 240)
		assert.Less(t, int(inside.G), 20)

		// Outside the clip the blurred, darkened background shows through
		// and reaches every canvas corner.
		for _, p := range []model.Point{{X: 1, Y: 1}, {X: 898, Y: 1598}, {X: d.Photo.X - 20, Y: start.Y}} {
			bg := rgbaAt(img, p.X, p.Y)
			assert.InDelta(t, 178, int(bg.R), 6, "background at %+v", p)
			assert.Less(t, int(bg.G), 10)
		}
	}
}

func TestRender_PanelModes(t *testing.T) {
	svgAsset := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><circle cx="5" cy="5" r="5" fill="#000"/></svg>`)

	tests := []struct {
		name  string
		panel model.Panel
		want  LayerSource
	}{
		{"hidden", model.Panel{Visible: false, Mode: model.PanelPreset, Preset: "ocean"}, LayerNone},
		{"preset", model.Panel{Visible: true, Mode: model.PanelPreset, Preset: "ocean"}, LayerSupplied},
		{"mesh preset", model.Panel{Visible: true, Mode: model.PanelPreset, Preset: "mesh-aurora"}, LayerSupplied},
		{"unknown preset", model.Panel{Visible: true, Mode: model.PanelPreset, Preset: "nope"}, LayerDefault},
		{"gradient", model.Panel{Visible: true, Mode: model.PanelGradient, Angle: 135, Colors: []string{"#000", "#fff", "#f00"}}, LayerSupplied},
		{"gradient bad colors", model.Panel{Visible: true, Mode: model.PanelGradient, Angle: 135, Colors: []string{"#000", "not-a-color"}}, LayerDefault},
		{"gradient one color", model.Panel{Visible: true, Mode: model.PanelGradient, Colors: []string{"#000"}}, LayerDefault},
		{"asset missing", model.Panel{Visible: true, Mode: model.PanelAsset}, LayerFallback},
		{"asset broken", model.Panel{Visible: true, Mode: model.PanelAsset, Asset: &model.Source{Data: []byte("<svg")}}, LayerFallback},
		{"asset masked", model.Panel{Visible: true, Mode: model.PanelAsset, Asset: &model.Source{Data: svgAsset}, MaskWithGradient: true}, LayerSupplied},
		{"asset plain", model.Panel{Visible: true, Mode: model.PanelAsset, Asset: &model.Source{Data: svgAsset}}, LayerSupplied},
	}

	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatSquare, "Title")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := model.Style{Format: model.FormatSquare, Panel: tt.panel}
			_, res, err := r.RenderImage(context.Background(), sampleContent(), style, d, model.IdentityTransform(), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Panel)
		})
	}
}

func TestRender_LogoFallbackChain(t *testing.T) {
	content := sampleContent()
	content.Logo = &model.Source{Data: solidPNG(t, 200, 100, color.White)}

	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatLandscape, content.Title)

	_, res, err := r.RenderImage(context.Background(), content, model.DefaultStyle(), d, model.IdentityTransform(), Options{})
	require.NoError(t, err)
	assert.Equal(t, LayerSupplied, res.Logo)

	content.Logo = &model.Source{Data: []byte("garbage")}
	_, res, err = r.RenderImage(context.Background(), content, model.DefaultStyle(), d, model.IdentityTransform(), Options{})
	require.NoError(t, err)
	assert.Equal(t, LayerDefault, res.Logo)

	broken := newTestRenderer([]byte("not a logo"))
	_, res, err = broken.RenderImage(context.Background(), content, model.DefaultStyle(), d, model.IdentityTransform(), Options{})
	require.NoError(t, err)
	assert.Equal(t, LayerFallback, res.Logo)
}

func TestRender_CTALabelTruncatedToMaxWidth(t *testing.T) {
	r := newTestRenderer(nil)
	content := sampleContent()
	content.CTA = strings.Repeat("Book now ", 20)

	for _, format := range model.AllFormats {
		d := describe(t, r, format, content.Title)
		_, res, err := r.RenderImage(context.Background(), content, model.DefaultStyle(), d, model.IdentityTransform(), Options{})
		require.NoError(t, err)

		assert.InDelta(t, d.CTA.MaxWidth, res.CTARect.W, 1e-9, format)
		assert.True(t, strings.HasSuffix(res.CTALabel, "…"), format)
		assert.True(t, res.CTARect.Within(d.Panel), "%s: %+v not in panel", format, res.CTARect)
		assert.LessOrEqual(t, res.CTARect.Y, d.CTA.Slot.Y, format)
		assert.False(t, res.CTARect.Intersects(d.Photo), format)
	}
}

func TestRender_QRCode(t *testing.T) {
	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatLandscape, "Title")
	style := model.DefaultStyle()
	style.QRCodeURL = "https://example.com/tours/18695"

	_, res, err := r.RenderImage(context.Background(), sampleContent(), style, d, model.IdentityTransform(), Options{})
	require.NoError(t, err)
	assert.True(t, res.QR)
}

func TestRender_CancelledContext(t *testing.T) {
	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatStory, "Title")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.RenderImage(ctx, sampleContent(), model.DefaultStyle(), d, model.IdentityTransform(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackgroundRect_AlwaysCoversCanvas(t *testing.T) {
	canvas := model.Rect{W: 900, H: 1600}
	transforms := []model.Transform{
		model.IdentityTransform(),
		{Scale: 0.1},
		{Scale: 5},
		{OffsetX: 10000, OffsetY: -10000, Scale: 1},
		{OffsetX: -500, OffsetY: 800, Scale: 0.3},
	}

	for _, aspect := range []float64{0.5, 1, 16.0 / 9.0} {
		for _, tr := range transforms {
			rect := backgroundRect(aspect, canvas, tr)
			assert.LessOrEqual(t, rect.X, 0.0)
			assert.LessOrEqual(t, rect.Y, 0.0)
			assert.GreaterOrEqual(t, rect.Right(), canvas.W)
			assert.GreaterOrEqual(t, rect.Bottom(), canvas.H)
		}
	}
}

func TestFitLabel(t *testing.T) {
	measure := func(s string) float64 { return float64(len([]rune(s))) * 10 }

	assert.Equal(t, "Go", fitLabel("Go", 100, measure))
	assert.Equal(t, "Book…", fitLabel("Book tickets", 50, measure))
	assert.Equal(t, "…", fitLabel("Book", 5, measure))
}

func TestPresetNames_SortedAndIncludeDefault(t *testing.T) {
	names := PresetNames()
	assert.True(t, slices.IsSorted(names))
	assert.Contains(t, names, defaultPreset)
}
