package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/provider"
	"github.com/fleveque/promo-composer/internal/service"
)

// SearchHandler finds candidate photos for a poster.
type SearchHandler struct {
	searchService *service.ImageSearchService
	logger        *zap.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searchService *service.ImageSearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// Search returns image URLs for a tour number or attraction name.
// Route: GET /api/v1/images/search?query=18695
//
// 400 for an empty query, 404 when the tour or its images don't exist, 502
// when the upstream page or LLM fails.
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		// Older clients send ?tourNumber=.
		query = c.Query("tourNumber")
	}

	res, err := h.searchService.Search(c.Request.Context(), query)
	if err != nil {
		h.logger.Warn("image search failed", zap.String("query", query), zap.Error(err))
		switch {
		case errors.Is(err, service.ErrEmptyQuery),
			errors.Is(err, service.ErrNoImages),
			errors.Is(err, provider.ErrNotFound):
			respondError(c, h.logger, err)
		default:
			respondStatus(c, h.logger, http.StatusBadGateway, err)
		}
		return
	}

	c.JSON(http.StatusOK, res)
}
