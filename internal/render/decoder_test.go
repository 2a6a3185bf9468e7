package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/model"
)

func TestDecoder_SVGUsesHintWidth(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	img, err := d.Decode(context.Background(), "logo", &model.Source{Data: DefaultLogo()}, image.Point{X: 180})
	require.NoError(t, err)
	assert.Equal(t, 180, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())

	native, err := d.Decode(context.Background(), "logo", &model.Source{Data: DefaultLogo()}, image.Point{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 360, 80), native.Bounds())
}

func TestDecoder_RasterBytes(t *testing.T) {
	d := NewDecoder(zap.NewNop())
	img, err := d.Decode(context.Background(), "photo", &model.Source{Data: solidPNG(t, 64, 32, color.White)}, image.Point{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())
}

func TestDecoder_FailuresAreDecodeErrors(t *testing.T) {
	d := NewDecoder(zap.NewNop())

	tests := []struct {
		name string
		src  *model.Source
	}{
		{"empty", nil},
		{"garbage", &model.Source{Data: []byte("nope")}},
		{"bad svg", &model.Source{Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"><bogus/></svg>`)}},
		{"too large", &model.Source{Data: make([]byte, maxSourceBytes+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(context.Background(), "photo", tt.src, image.Point{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrDecode))

			var de *model.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "photo", de.Layer)
		})
	}
}

func TestDecoder_DownloadsURLSources(t *testing.T) {
	data := solidPNG(t, 10, 20, color.Black)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photo.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	d := NewDecoder(zap.NewNop())

	img, err := d.Start(context.Background(), "photo", &model.Source{URL: srv.URL + "/photo.png"}, image.Point{}).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 20), img.Bounds())

	_, err = d.Decode(context.Background(), "photo", &model.Source{URL: srv.URL + "/missing.png"}, image.Point{})
	assert.ErrorIs(t, err, model.ErrDecode)
}

func TestPending_AbsentSource(t *testing.T) {
	d := NewDecoder(zap.NewNop())
	img, err := d.Start(context.Background(), "logo", nil, image.Point{}).Wait(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, img)
}

func TestDecoder_SVGHugeViewBoxIsBounded(t *testing.T) {
	d := NewDecoder(zap.NewNop())
	svg := func(viewBox string) *model.Source {
		return &model.Source{Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="` + viewBox +
			`"><rect width="10" height="10" fill="#000"/></svg>`)}
	}

	tests := []struct {
		name    string
		viewBox string
		hint    image.Point
	}{
		{"huge square", "0 0 1e10 1e10", image.Point{}},
		{"large", "0 0 60000 60000", image.Point{}},
		{"tall with width hint", "0 0 1 100000", image.Point{X: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.Start(context.Background(), "photo", svg(tt.viewBox), tt.hint).Wait(context.Background())
			if err != nil {
				var de *model.DecodeError
				require.ErrorAs(t, err, &de)
				return
			}
			assert.LessOrEqual(t, img.Bounds().Dx(), maxRasterSide)
			assert.LessOrEqual(t, img.Bounds().Dy(), maxRasterSide)
		})
	}
}

func TestRender_HugeSVGPhotoStillRenders(t *testing.T) {
	r := newTestRenderer(nil)
	d := describe(t, r, model.FormatSquare, "Title")
	content := sampleContent()
	content.Photo = &model.Source{Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1e10 1e10"/>`)}

	img, res, err := r.RenderImage(context.Background(), content, model.Style{Format: model.FormatSquare}, d, model.IdentityTransform(), Options{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1200, 1200), img.Bounds())
	assert.NotNil(t, res)
}
