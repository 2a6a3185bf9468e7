// Package export turns rendered posters into files: single encoded rasters and
// zip bundles holding one raster per format.
package export

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/h2non/bimg"

	"github.com/fleveque/promo-composer/internal/model"
)

// Encoding is an output raster encoding.
type Encoding string

const (
	PNG  Encoding = "png"
	JPEG Encoding = "jpeg"
	WebP Encoding = "webp"
)

// DefaultQuality is used for lossy encodings when no quality is given.
const DefaultQuality = 92

// ParseEncoding accepts png, jpeg (or jpg) and webp. Empty means PNG.
// Anything else is a *model.ConfigError.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	}
	return "", &model.ConfigError{Format: s, Kind: model.KindEncoding}
}

// Ext returns the file extension, without the dot.
func (e Encoding) Ext() string {
	if e == JPEG {
		return "jpg"
	}
	return string(e)
}

// ContentType returns the MIME type.
func (e Encoding) ContentType() string {
	return "image/" + string(e)
}

// Encode serializes img. quality applies to JPEG and WebP and is clamped to
// [1, 100]; zero means DefaultQuality. Failures are *model.EncodeError.
func Encode(img image.Image, enc Encoding, quality int) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &model.EncodeError{Encoding: string(enc), Err: fmt.Errorf("empty raster")}
	}
	quality = clampQuality(quality)

	var buf bytes.Buffer
	switch enc {
	case PNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, &model.EncodeError{Encoding: string(enc), Err: err}
		}
	case JPEG:
		// JPEG has no alpha; flatten onto white first.
		flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
		flat = imaging.Overlay(flat, img, image.Point{}, 1.0)
		if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, &model.EncodeError{Encoding: string(enc), Err: err}
		}
	case WebP:
		return encodeWebP(img, quality)
	default:
		return nil, &model.EncodeError{Encoding: string(enc), Err: fmt.Errorf("unknown encoding")}
	}
	return buf.Bytes(), nil
}

// encodeWebP goes through libvips; Go has no WebP encoder of its own.
// bimg needs encoded input, so the raster is handed over as PNG.
func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, &model.EncodeError{Encoding: string(WebP), Err: err}
	}

	out, err := bimg.NewImage(buf.Bytes()).Process(bimg.Options{
		Type:           bimg.WEBP,
		Quality:        quality,
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, &model.EncodeError{Encoding: string(WebP), Err: err}
	}
	return out, nil
}

func clampQuality(q int) int {
	switch {
	case q == 0:
		return DefaultQuality
	case q < 1:
		return 1
	case q > 100:
		return 100
	}
	return q
}
