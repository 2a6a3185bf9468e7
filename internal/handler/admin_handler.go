package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/editor"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/storage"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	searchRepo  storage.SearchRepository
	llmCallRepo storage.LLMCallRepository
	exportRepo  storage.ExportRepository
	sessions    *editor.Manager
	sessionIdle time.Duration
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	searchRepo storage.SearchRepository,
	llmCallRepo storage.LLMCallRepository,
	exportRepo storage.ExportRepository,
	sessions *editor.Manager,
	sessionIdle time.Duration,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		searchRepo:  searchRepo,
		llmCallRepo: llmCallRepo,
		exportRepo:  exportRepo,
		sessions:    sessions,
		sessionIdle: sessionIdle,
		logger:      logger,
	}
}

// Stats returns cache, LLM usage, export and session counts.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	searches, err := h.searchRepo.Count(ctx)
	if err != nil {
		h.internalError(c, "counting cached searches", err)
		return
	}

	llmCalls, err := h.llmCallRepo.Count(ctx)
	if err != nil {
		h.internalError(c, "counting LLM calls", err)
		return
	}

	exports := gin.H{}
	for _, status := range []model.ExportStatus{model.ExportPending, model.ExportStored, model.ExportFailed} {
		n, err := h.exportRepo.CountByStatus(ctx, status)
		if err != nil {
			h.internalError(c, "counting exports", err)
			return
		}
		exports[string(status)] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"cached_searches": searches,
		"llm_calls":       llmCalls,
		"exports":         exports,
		"sessions":        h.sessions.Len(),
	})
}

// ExpireSessions closes idle editor sessions right away instead of waiting
// for the background sweep.
// Route: POST /api/v1/admin/sessions/expire?idle=10m
// Without idle the configured session idle timeout applies.
func (h *AdminHandler) ExpireSessions(c *gin.Context) {
	idle, err := durationQuery(c, "idle")
	if err != nil {
		paramError(c, h.logger, err)
		return
	}
	if idle == 0 {
		idle = h.sessionIdle
	}
	removed := h.sessions.Expire(idle)
	c.JSON(http.StatusOK, gin.H{
		"removed":  removed,
		"sessions": h.sessions.Len(),
	})
}

func (h *AdminHandler) internalError(c *gin.Context, what string, err error) {
	h.logger.Error(what, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
