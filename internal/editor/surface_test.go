package editor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/gesture"
	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/render"
)

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	logger := zap.NewNop()
	fonts := render.DefaultFonts()
	renderer := render.NewRenderer(fonts, render.NewDecoder(logger), nil, logger)
	s := NewSurface(layout.NewRegistry(fonts), renderer, time.Millisecond, logger)
	t.Cleanup(s.Close)
	return s
}

func photo(t *testing.T, c color.Color) *model.Source {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &model.Source{Data: buf.Bytes()}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSurface_NotConfigured(t *testing.T) {
	s := newTestSurface(t)

	assert.ErrorIs(t, s.Wait(waitCtx(t)), ErrNotConfigured)
	assert.ErrorIs(t, s.SetTransform(model.IdentityTransform()), ErrNotConfigured)
	_, err := s.RasterBytes(waitCtx(t), export.PNG, 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, s.PointerDown(10, 10))
}

func TestSurface_ConfigureRejectsUnknownFormat(t *testing.T) {
	s := newTestSurface(t)
	err := s.Configure(model.Content{Title: "x"}, model.Style{Format: "640x480"})
	assert.ErrorIs(t, err, model.ErrUnsupportedFormat)

	_, err = s.Layout()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSurface_ConfigureRendersFrame(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.Configure(model.Content{Title: "Hello\nWorld", Subtitle: "Test", CTA: "Go"}, model.DefaultStyle()))
	require.NoError(t, s.Wait(waitCtx(t)))

	frame, res := s.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, image.Rect(0, 0, 900, 1600), frame.Bounds())
	assert.Equal(t, []string{"Hello", "World"}, res.TitleLines)
	assert.Equal(t, uint64(1), s.Stats().Committed)
}

func TestSurface_StaleRenderIsDiscarded(t *testing.T) {
	var hits atomic.Int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	}))
	defer slow.Close()

	s := newTestSurface(t)

	// The first render hangs on its photo download.
	require.NoError(t, s.Configure(model.Content{Title: "First", Photo: &model.Source{URL: slow.URL + "/photo.jpg"}}, model.DefaultStyle()))
	require.Eventually(t, func() bool { return hits.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Configure(model.Content{Title: "Second"}, model.DefaultStyle()))
	require.NoError(t, s.Wait(waitCtx(t)))

	_, res := s.Frame()
	require.NotNil(t, res)
	assert.Equal(t, []string{"Second"}, res.TitleLines)

	require.Eventually(t, func() bool { return s.Stats().Discarded == 1 }, 5*time.Second, 5*time.Millisecond)

	_, res = s.Frame()
	assert.Equal(t, []string{"Second"}, res.TitleLines, "stale render must not replace the frame")
	assert.Equal(t, uint64(2), s.Stats().Started)
	assert.Equal(t, uint64(1), s.Stats().Committed)
}

func TestSurface_PhotoChangeResetsTransform(t *testing.T) {
	s := newTestSurface(t)
	red := photo(t, color.NRGBA{R: 255, A: 255})

	require.NoError(t, s.Configure(model.Content{Title: "A", Photo: red}, model.DefaultStyle()))
	require.NoError(t, s.SetTransform(model.Transform{OffsetX: 40, OffsetY: -10, Scale: 2}))

	// Same photo, new text: transform survives.
	require.NoError(t, s.Configure(model.Content{Title: "B", Photo: red}, model.DefaultStyle()))
	assert.Equal(t, model.Transform{OffsetX: 40, OffsetY: -10, Scale: 2}, s.Transform())

	require.NoError(t, s.Configure(model.Content{Title: "B", Photo: photo(t, color.NRGBA{B: 255, A: 255})}, model.DefaultStyle()))
	assert.Equal(t, model.IdentityTransform(), s.Transform())
	require.NoError(t, s.Wait(waitCtx(t)))
}

func TestSurface_PointerDragThroughViewport(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.Configure(model.Content{Title: "Drag me", Photo: photo(t, color.White)}, model.DefaultStyle()))
	require.NoError(t, s.Wait(waitCtx(t)))

	d, err := s.Layout()
	require.NoError(t, err)

	// Displayed at half size, offset by (10, 20).
	s.SetViewport(gesture.Viewport{Left: 10, Top: 20, Width: 450, Height: 800})
	cx := 10 + (d.Photo.X+d.Photo.W/2)/2
	cy := 20 + (d.Photo.Y+d.Photo.H/2)/2

	require.True(t, s.PointerDown(cx, cy))
	assert.Equal(t, gesture.Dragging, s.GestureState())
	for i := 1; i <= 5; i++ {
		s.PointerMove(cx+float64(i)*5, cy+float64(i)*5)
	}
	s.PointerUp()
	assert.Equal(t, gesture.Idle, s.GestureState())

	require.NoError(t, s.Wait(waitCtx(t)))
	tr := s.Transform()
	assert.InDelta(t, 50.0, tr.OffsetX, 1e-9)
	assert.InDelta(t, 50.0, tr.OffsetY, 1e-9)

	_, res := s.Frame()
	require.NotNil(t, res)
	assert.True(t, res.PhotoDecoded)
	assert.True(t, res.Handle)
}

func TestSurface_RasterBytesExportMode(t *testing.T) {
	s := newTestSurface(t)
	style := model.DefaultStyle()
	style.Format = model.FormatLandscape
	require.NoError(t, s.Configure(model.Content{Title: "Export", CTA: "Book"}, style))

	data, err := s.RasterBytes(waitCtx(t), export.PNG, 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1200, 628), img.Bounds())
}

func TestSurface_Closed(t *testing.T) {
	s := newTestSurface(t)
	s.Close()
	assert.ErrorIs(t, s.Configure(model.Content{}, model.DefaultStyle()), ErrClosed)
}

func TestSurface_RasterBytesAfterClose(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.Configure(model.Content{Title: "Bye"}, model.Style{Format: model.FormatSquare}))
	s.Close()

	_, err := s.RasterBytes(context.Background(), export.PNG, 0)
	assert.ErrorIs(t, err, ErrClosed)
}
