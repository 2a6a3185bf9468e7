package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/render"
	"github.com/fleveque/promo-composer/internal/storage"
)

// RenderRequest is one stateless render: content, style and photo transform
// in, encoded raster out.
type RenderRequest struct {
	Content   model.Content   `json:"content"`
	Style     model.Style     `json:"style"`
	Transform model.Transform `json:"transform"`
	Encoding  export.Encoding `json:"-"`
	Quality   int             `json:"-"`
	// PreviewWidth, when positive, scales the output down to this width.
	PreviewWidth int `json:"-"`
}

// ExportRequest renders the same content at several formats into one bundle.
// An empty Formats list means every format, in registry order.
type ExportRequest struct {
	Content   model.Content   `json:"content"`
	Style     model.Style     `json:"style"`
	Transform model.Transform `json:"transform"`
	Formats   []string        `json:"formats"`
	Encoding  export.Encoding `json:"-"`
	Quality   int             `json:"-"`
}

// ExportResult describes a stored bundle.
type ExportResult struct {
	Token   string   `json:"token"`
	Entries []string `json:"entries"`
	Size    int64    `json:"size_bytes"`
	Data    []byte   `json:"-"`
}

// PosterService renders posters and stores exported bundles.
type PosterService struct {
	registry   *layout.Registry
	renderer   *render.Renderer
	processor  *ImageProcessor
	exportRepo storage.ExportRepository
	fs         *storage.FileSystem
	timeout    time.Duration
	logger     *zap.Logger
}

// NewPosterService wires the renderer to the export store. exportRepo and fs
// may be nil (as in the CLI), in which case bundles are not persisted.
func NewPosterService(
	registry *layout.Registry,
	renderer *render.Renderer,
	processor *ImageProcessor,
	exportRepo storage.ExportRepository,
	fs *storage.FileSystem,
	timeout time.Duration,
	logger *zap.Logger,
) *PosterService {
	return &PosterService{
		registry:   registry,
		renderer:   renderer,
		processor:  processor,
		exportRepo: exportRepo,
		fs:         fs,
		timeout:    timeout,
		logger:     logger,
	}
}

// Registry exposes the layout registry, e.g. for listing formats.
func (s *PosterService) Registry() *layout.Registry { return s.registry }

// Render renders and encodes one poster in export mode.
func (s *PosterService) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.Encoding == "" {
		req.Encoding = export.PNG
	}
	format, err := normalizeFormat(req.Style.Format)
	if err != nil {
		return nil, err
	}
	req.Style.Format = format

	data, err := s.renderOne(ctx, req.Content, req.Style, req.Transform, req.Encoding, req.Quality)
	if err != nil {
		return nil, err
	}
	if req.PreviewWidth > 0 {
		return s.processor.Preview(data, req.PreviewWidth, req.Encoding, req.Quality)
	}
	return data, nil
}

// Export renders every requested format and bundles them into one archive.
// Any failing entry fails the whole export. When storage is configured the
// bundle is saved and recorded under a random token.
func (s *PosterService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if req.Encoding == "" {
		req.Encoding = export.PNG
	}
	formats, err := s.resolveFormats(req.Formats)
	if err != nil {
		return nil, err
	}

	entries := make([]export.Entry, 0, len(formats))
	for _, f := range formats {
		style := req.Style
		style.Format = f
		data, err := s.renderOne(ctx, req.Content, style, req.Transform, req.Encoding, req.Quality)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", f, err)
		}
		entries = append(entries, export.Entry{Format: f, Encoding: req.Encoding, Data: data})
	}

	bundle, err := export.Bundle(entries)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Size: int64(len(bundle)), Data: bundle}
	for _, e := range entries {
		result.Entries = append(result.Entries, e.Name())
	}

	if s.exportRepo == nil || s.fs == nil {
		return result, nil
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	result.Token = token
	if err := s.store(ctx, token, formats, req.Encoding, bundle); err != nil {
		return nil, err
	}

	s.logger.Info("export stored",
		zap.String("token", token),
		zap.Strings("entries", result.Entries),
		zap.Int64("size_bytes", result.Size),
	)
	return result, nil
}

// GetExport returns a stored bundle by token.
func (s *PosterService) GetExport(ctx context.Context, token string) ([]byte, error) {
	if s.exportRepo == nil || s.fs == nil {
		return nil, storage.ErrNotFound
	}
	rec, err := s.exportRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.ExportStored {
		return nil, storage.ErrNotFound
	}
	return s.fs.Read(token)
}

func (s *PosterService) store(ctx context.Context, token string, formats []model.Format, enc export.Encoding, bundle []byte) error {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	rec := &model.Export{
		Token:    token,
		Formats:  strings.Join(names, ","),
		Encoding: string(enc),
	}
	if err := s.exportRepo.Create(ctx, rec); err != nil {
		return fmt.Errorf("recording export: %w", err)
	}

	if err := s.fs.Write(token, bundle); err != nil {
		if markErr := s.exportRepo.MarkFailed(ctx, token, err.Error()); markErr != nil {
			s.logger.Error("marking export failed", zap.String("token", token), zap.Error(markErr))
		}
		return fmt.Errorf("storing export: %w", err)
	}
	if err := s.exportRepo.MarkStored(ctx, token, int64(len(bundle))); err != nil {
		// An unrecorded bundle can never be downloaded.
		if delErr := s.fs.Delete(token); delErr != nil {
			s.logger.Error("removing orphaned export", zap.String("token", token), zap.Error(delErr))
		}
		return fmt.Errorf("recording stored export: %w", err)
	}
	return nil
}

func (s *PosterService) renderOne(ctx context.Context, content model.Content, style model.Style, t model.Transform, enc export.Encoding, quality int) ([]byte, error) {
	d, err := s.registry.Layout(style.Format, content.Title)
	if err != nil {
		return nil, err
	}
	if t.Scale == 0 {
		t.Scale = 1
	}
	t.Scale = d.ClampScale(t.Scale)

	img, _, err := s.renderer.RenderImage(ctx, content, style, d, t, render.Options{})
	if err != nil {
		return nil, err
	}
	return export.Encode(img, enc, quality)
}

func (s *PosterService) resolveFormats(names []string) ([]model.Format, error) {
	if len(names) == 0 {
		return s.registry.Formats(), nil
	}
	seen := make(map[model.Format]bool, len(names))
	for _, name := range names {
		if name == "all" {
			return s.registry.Formats(), nil
		}
		f, err := model.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		seen[f] = true
	}
	// Bundles follow registry order regardless of request order.
	ordered := make([]model.Format, 0, len(seen))
	for _, f := range s.registry.Formats() {
		if seen[f] {
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

func (s *PosterService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// normalizeFormat maps aliases to canonical formats; empty means story.
func normalizeFormat(f model.Format) (model.Format, error) {
	if f == "" {
		return model.FormatStory, nil
	}
	return model.ParseFormat(string(f))
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating export token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	var cfgErr *model.ConfigError
	return errors.As(err, &cfgErr)
}
