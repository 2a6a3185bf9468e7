package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/export"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/render"
	"github.com/fleveque/promo-composer/internal/service"
)

// PosterHandler serves stateless renders and bundle exports.
// It delegates to PosterService, which owns layout, rendering and storage.
type PosterHandler struct {
	posterService *service.PosterService
	logger        *zap.Logger
}

// NewPosterHandler creates a new PosterHandler with the poster service.
func NewPosterHandler(posterService *service.PosterService, logger *zap.Logger) *PosterHandler {
	return &PosterHandler{
		posterService: posterService,
		logger:        logger,
	}
}

// Formats lists the supported output formats with their base layouts.
// Route: GET /api/v1/formats
func (h *PosterHandler) Formats(c *gin.Context) {
	registry := h.posterService.Registry()
	formats := make([]gin.H, 0, len(registry.Formats()))
	for _, f := range registry.Formats() {
		d, err := registry.Layout(f, "")
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		formats = append(formats, gin.H{
			"format": f,
			"width":  d.Width,
			"height": d.Height,
			"layout": d,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"formats": formats,
		"presets": render.PresetNames(),
	})
}

// Render renders one poster and returns the encoded image.
// Route: POST /api/v1/posters/render?encoding=png&quality=92&width=450
//
// The body is JSON {content, style, transform}; photo and logo sources carry
// base64 data or a URL.
func (h *PosterHandler) Render(c *gin.Context) {
	var req service.RenderRequest
	// ShouldBindJSON decodes the body and returns an error instead of writing a 400 itself.
	if err := c.ShouldBindJSON(&req); err != nil {
		paramError(c, h.logger, err)
		return
	}

	enc, quality, err := encodingParams(c)
	if err != nil {
		paramError(c, h.logger, err)
		return
	}
	width, err := intQuery(c, "width")
	if err != nil {
		paramError(c, h.logger, err)
		return
	}
	req.Encoding, req.Quality, req.PreviewWidth = enc, quality, width

	data, err := h.posterService.Render(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// The render succeeded, so the format is either valid or empty (story).
	format, err := model.ParseFormat(string(req.Style.Format))
	if err != nil {
		format = model.FormatStory
	}
	c.Header("Content-Disposition", `inline; filename="`+export.FileName(format, enc)+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, enc.ContentType(), data)
}

// Export renders the requested formats and returns them as one zip.
// Route: POST /api/v1/posters/export?encoding=png
//
// The bundle is also stored; its token comes back in X-Export-Token and can be
// fetched again from /api/v1/exports/:id.
func (h *PosterHandler) Export(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		paramError(c, h.logger, err)
		return
	}

	enc, quality, err := encodingParams(c)
	if err != nil {
		paramError(c, h.logger, err)
		return
	}
	req.Encoding, req.Quality = enc, quality

	res, err := h.posterService.Export(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if res.Token != "" {
		c.Header("X-Export-Token", res.Token)
	}
	c.Header("Content-Disposition", `attachment; filename="promotional-images.zip"`)
	c.Data(http.StatusOK, "application/zip", res.Data)
}

// GetExport downloads a stored bundle.
// Route: GET /api/v1/exports/:id
func (h *PosterHandler) GetExport(c *gin.Context) {
	data, err := h.posterService.GetExport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Stored bundles never change.
	c.Header("Cache-Control", "private, max-age=86400")
	c.Header("Content-Disposition", `attachment; filename="promotional-images.zip"`)
	c.Data(http.StatusOK, "application/zip", data)
}
