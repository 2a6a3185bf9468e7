package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/config"
	"github.com/fleveque/promo-composer/internal/middleware"
)

// Server wraps the HTTP server and its dependencies.
// In Go, you typically compose a struct with all the pieces your server needs,
// then wire them together in the constructor (New function).
type Server struct {
	cfg    *config.Config
	deps   Deps
	router *gin.Engine
	logger *zap.Logger
	http   *http.Server

	stopSweep chan struct{}
	sweepDone sync.WaitGroup
}

// New creates and configures a new Server.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	// Set Gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Recovery middleware catches panics and returns 500 instead of crashing.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	RegisterRoutes(router, cfg, deps, logger)

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
		logger: logger,
		http: &http.Server{
			Addr:        cfg.Server.Address(),
			Handler:     router,
			ReadTimeout: 30 * time.Second,
			// Renders and bundle exports run inside the request.
			WriteTimeout: cfg.Render.Timeout + 30*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stopSweep: make(chan struct{}),
	}

	return s
}

// Start begins listening for HTTP requests. This blocks until the server stops.
func (s *Server) Start() error {
	s.startSessionSweep()

	s.logger.Info("starting server", zap.String("address", s.cfg.Server.Address()))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete, then closes every editor session.
// context.Context is Go's way of handling cancellation and timeouts; you'll see it everywhere.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	err := s.http.Shutdown(ctx)

	close(s.stopSweep)
	s.sweepDone.Wait()
	if s.deps.Sessions != nil {
		s.deps.Sessions.CloseAll()
	}
	return err
}

// Router returns the underlying Gin engine (useful for testing).
func (s *Server) Router() *gin.Engine {
	return s.router
}

// startSessionSweep expires idle editor sessions in the background.
// time.Ticker delivers a tick on its channel at every interval.
func (s *Server) startSessionSweep() {
	idle := s.cfg.Editor.SessionIdle
	if s.deps.Sessions == nil || idle <= 0 {
		return
	}

	interval := idle / 2
	if interval < time.Second {
		interval = time.Second
	}

	s.sweepDone.Add(1)
	go func() {
		defer s.sweepDone.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.deps.Sessions.Expire(idle)
			case <-s.stopSweep:
				return
			}
		}
	}()
}
