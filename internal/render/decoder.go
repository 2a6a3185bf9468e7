package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/h2non/bimg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/model"
)

// maxSourceBytes bounds downloads and inline payloads.
const maxSourceBytes = 10 << 20

// maxRasterSide bounds either side of a rasterized vector source.
const maxRasterSide = 4096

// Decoder turns a Source into a bitmap. It understands:
//   - URL sources (downloaded with a bounded body)
//   - SVG documents (rasterized with oksvg at the requested size)
//   - anything imaging can decode (PNG, JPEG, GIF, BMP, TIFF), honoring EXIF orientation
//   - everything else libvips knows (WebP, HEIF, AVIF...) via bimg
//
// Every failure is returned as a *model.DecodeError.
type Decoder struct {
	client *http.Client
	logger *zap.Logger
}

// NewDecoder creates a decoder with a 30s download timeout.
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Pending is an in-flight decode. Wait blocks until it finishes.
type Pending struct {
	done chan struct{}
	img  image.Image
	err  error
}

// Wait returns the decoded image, (nil, nil) for an absent source, or the decode error.
func (p *Pending) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-p.done:
		return p.img, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start begins decoding src in the background. hint is the preferred raster
// size for vector sources; a zero Y keeps the source's aspect ratio.
func (d *Decoder) Start(ctx context.Context, layer string, src *model.Source, hint image.Point) *Pending {
	p := &Pending{done: make(chan struct{})}
	if src.Empty() {
		close(p.done)
		return p
	}

	go func() {
		defer close(p.done)
		// A panic in a third-party decoder degrades this layer only.
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("decoder panicked", zap.String("layer", layer), zap.Any("panic", r))
				p.img, p.err = nil, &model.DecodeError{Layer: layer, Err: fmt.Errorf("decoder panic: %v", r)}
			}
		}()
		p.img, p.err = d.Decode(ctx, layer, src, hint)
	}()
	return p
}

// Decode synchronously decodes src.
func (d *Decoder) Decode(ctx context.Context, layer string, src *model.Source, hint image.Point) (image.Image, error) {
	if src.Empty() {
		return nil, &model.DecodeError{Layer: layer, Err: fmt.Errorf("empty source")}
	}

	data := src.Data
	if len(data) == 0 {
		var err error
		data, err = d.download(ctx, src.URL)
		if err != nil {
			return nil, &model.DecodeError{Layer: layer, Err: err}
		}
	}
	if len(data) > maxSourceBytes {
		return nil, &model.DecodeError{Layer: layer, Err: fmt.Errorf("source is %d bytes, limit is %d", len(data), maxSourceBytes)}
	}

	img, err := decodeBytes(data, hint)
	if err != nil {
		return nil, &model.DecodeError{Layer: layer, Err: err}
	}
	return img, nil
}

func decodeBytes(data []byte, hint image.Point) (image.Image, error) {
	if isSVG(data) {
		return rasterizeSVG(data, hint)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	// Formats the Go decoders don't know go through libvips.
	converted, vipsErr := bimg.NewImage(data).Convert(bimg.PNG)
	if vipsErr != nil {
		return nil, fmt.Errorf("unrecognized image data: %w", err)
	}
	return png.Decode(bytes.NewReader(converted))
}

// isSVG sniffs the first bytes for an <svg element.
func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// rasterizeSVG renders an SVG at hint's width (or its viewBox size when hint is
// zero). The result is scaled down so neither side exceeds maxRasterSide.
func rasterizeSVG(data []byte, hint image.Point) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing svg: %w", err)
	}

	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if !finite(vw) || !finite(vh) || vw <= 0 || vh <= 0 {
		return nil, fmt.Errorf("svg has no usable viewBox")
	}

	fw, fh := vw, vh
	switch {
	case hint.X > 0 && hint.Y > 0:
		fw, fh = float64(hint.X), float64(hint.Y)
	case hint.X > 0:
		fw = float64(hint.X)
		fh = fw * vh / vw
	}
	if !finite(fh) {
		return nil, fmt.Errorf("svg aspect ratio %gx%g is unusable", vw, vh)
	}
	if side := math.Max(fw, fh); side > maxRasterSide {
		fw = fw * maxRasterSide / side
		fh = fh * maxRasterSide / side
	}

	w, h := int(fw), int(fh)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg raster size %dx%d is empty", w, h)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func (d *Decoder) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "promo-composer/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	d.logger.Debug("downloaded source", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, nil
}
