// Package service contains the business logic behind the HTTP API and CLI:
// rendering and exporting posters, and finding candidate photos.
package service

import (
	"fmt"

	"github.com/h2non/bimg"

	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/model"
)

// ImageProcessor scales encoded posters down for previews.
// It uses bimg (Go bindings for libvips), a C library that's extremely fast
// at image manipulation. The trade-off: requires libvips as a system dependency.
type ImageProcessor struct{}

// NewImageProcessor creates a new ImageProcessor.
func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{}
}

// Preview scales an encoded image so it is at most width pixels wide, keeping
// its aspect ratio, and re-encodes it as enc. Images already narrow enough
// are returned unchanged.
func (p *ImageProcessor) Preview(data []byte, width int, enc export.Encoding, quality int) ([]byte, error) {
	if width <= 0 {
		return data, nil
	}

	// bimg.NewImage wraps raw bytes; it doesn't copy them, just references them.
	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return nil, &model.EncodeError{Encoding: string(enc), Err: fmt.Errorf("reading size: %w", err)}
	}
	if size.Width <= width {
		return data, nil
	}

	if quality <= 0 {
		quality = export.DefaultQuality
	}

	// bimg.Options is a struct with many fields: set only the ones you need.
	out, err := img.Process(bimg.Options{
		Width:          width,
		Type:           bimgType(enc),
		Quality:        quality,
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, &model.EncodeError{Encoding: string(enc), Err: fmt.Errorf("resizing to %dpx: %w", width, err)}
	}
	return out, nil
}

func bimgType(enc export.Encoding) bimg.ImageType {
	switch enc {
	case export.JPEG:
		return bimg.JPEG
	case export.WebP:
		return bimg.WEBP
	default:
		return bimg.PNG
	}
}
