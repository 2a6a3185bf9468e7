// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/config"
	"github.com/fleveque/promo-composer/internal/editor"
	"github.com/fleveque/promo-composer/internal/handler"
	"github.com/fleveque/promo-composer/internal/middleware"
	"github.com/fleveque/promo-composer/internal/service"
	"github.com/fleveque/promo-composer/internal/storage"
)

// Deps holds everything the routes need. cmd/server builds it once at startup.
type Deps struct {
	DB            *sqlx.DB
	PosterService *service.PosterService
	SearchService *service.ImageSearchService
	Sessions      *editor.Manager
	SearchRepo    storage.SearchRepository
	LLMCallRepo   storage.LLMCallRepository
	ExportRepo    storage.ExportRepository
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// In Go, we pass dependencies explicitly: no DI container, no magic.
// Each handler gets exactly the dependencies it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.DB)
	posterHandler := handler.NewPosterHandler(deps.PosterService, logger)
	searchHandler := handler.NewSearchHandler(deps.SearchService, logger)
	sessionHandler := handler.NewSessionHandler(deps.Sessions, logger)
	adminHandler := handler.NewAdminHandler(deps.SearchRepo, deps.LLMCallRepo, deps.ExportRepo,
		deps.Sessions, cfg.Editor.SessionIdle, logger)

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	// CORS middleware applies to the entire API group.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	api.Use(middleware.BodyLimit(int64(cfg.Server.MaxBodyMB) << 20))

	// Authenticated API endpoints
	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.GET("/formats", posterHandler.Formats)
		authed.POST("/posters/render", posterHandler.Render)
		authed.POST("/posters/export", posterHandler.Export)
		authed.GET("/exports/:id", posterHandler.GetExport)

		authed.GET("/images/search", searchHandler.Search)

		authed.POST("/sessions", sessionHandler.Create)
		authed.PUT("/sessions/:id", sessionHandler.Configure)
		authed.DELETE("/sessions/:id", sessionHandler.Delete)
		authed.POST("/sessions/:id/pointer", sessionHandler.Pointer)
		authed.GET("/sessions/:id/transform", sessionHandler.GetTransform)
		authed.PUT("/sessions/:id/transform", sessionHandler.SetTransform)
		authed.GET("/sessions/:id/raster", sessionHandler.Raster)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.POST("/sessions/expire", adminHandler.ExpireSessions)
	}
}
