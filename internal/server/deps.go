package server

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/config"
	"github.com/fleveque/promo-composer/internal/editor"
	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/llm"
	"github.com/fleveque/promo-composer/internal/provider"
	"github.com/fleveque/promo-composer/internal/render"
	"github.com/fleveque/promo-composer/internal/service"
	"github.com/fleveque/promo-composer/internal/storage"
)

// NewDeps opens storage and builds every service from cfg. The returned
// close function releases the database; call it after Shutdown.
func NewDeps(cfg *config.Config, logger *zap.Logger) (Deps, func() error, error) {
	registry, renderer, err := NewEngine(cfg, logger)
	if err != nil {
		return Deps{}, nil, err
	}

	// 0755: owner rwx, group/others rx.
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return Deps{}, nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("opening database: %w", err)
	}
	fs, err := storage.NewFileSystem(cfg.Storage.ExportDir)
	if err != nil {
		db.Close()
		return Deps{}, nil, fmt.Errorf("creating export store: %w", err)
	}

	searchRepo := storage.NewSearchRepository(db)
	llmCallRepo := storage.NewLLMCallRepository(db)
	exportRepo := storage.NewExportRepository(db)

	scraper := provider.NewTourPageProvider(cfg.Search.TourURLTemplate, cfg.Search.AllowedHosts, cfg.Search.MaxResults, logger)

	// A nil *LLMProvider stored in the interface would not compare equal to
	// nil, so the variable stays an interface until there is a client.
	var llmProvider provider.ImageProvider
	if clients := LLMClients(cfg.LLM, logger); len(clients) > 0 {
		llmProvider = provider.NewLLMProvider(clients, cfg.LLM.RatePerMinute, cfg.Search.MaxResults, llmCallRepo, logger)
	}

	deps := Deps{
		DB: db,
		PosterService: service.NewPosterService(registry, renderer, service.NewImageProcessor(),
			exportRepo, fs, cfg.Render.Timeout, logger),
		SearchService: service.NewImageSearchService(searchRepo, scraper, llmProvider, cfg.Search.CacheTTL, logger),
		Sessions:      editor.NewManager(registry, renderer, cfg.Editor.FrameInterval(), cfg.Editor.MaxSessions, logger),
		SearchRepo:    searchRepo,
		LLMCallRepo:   llmCallRepo,
		ExportRepo:    exportRepo,
	}
	return deps, db.Close, nil
}

// NewEngine loads fonts and the default logo and builds the layout registry
// and renderer. The CLI uses it without storage.
func NewEngine(cfg *config.Config, logger *zap.Logger) (*layout.Registry, *render.Renderer, error) {
	fonts, err := render.NewFonts(cfg.Render.RegularFont, cfg.Render.BoldFont, logger)
	if err != nil {
		return nil, nil, err
	}

	var defaultLogo []byte
	if cfg.Render.DefaultLogoPath != "" {
		defaultLogo, err = os.ReadFile(cfg.Render.DefaultLogoPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading default logo: %w", err)
		}
	}

	return layout.NewRegistry(fonts), render.NewRenderer(fonts, render.NewDecoder(logger), defaultLogo, logger), nil
}

// LLMClients builds clients in the configured provider order. Providers
// without an API key are skipped.
func LLMClients(cfg config.LLMConfig, logger *zap.Logger) []llm.Client {
	var clients []llm.Client
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "anthropic":
			if cfg.Anthropic.APIKey != "" {
				clients = append(clients, llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
			}
		case "openai":
			if cfg.OpenAI.APIKey != "" {
				clients = append(clients, llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
			}
		default:
			logger.Warn("unknown LLM provider in provider_order", zap.String("provider", name))
		}
	}
	if len(clients) == 0 {
		logger.Info("no LLM providers configured, free-text image search disabled")
	}
	return clients
}
