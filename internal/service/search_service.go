package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/provider"
	"github.com/fleveque/promo-composer/internal/storage"
)

var (
	// ErrEmptyQuery is returned for blank search queries.
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrNoImages means every source answered but none had usable images.
	ErrNoImages = errors.New("no images found")
)

// ImageSearchService finds candidate photos for a poster using a
// 3-layer acquisition strategy:
//
//	Layer 1: Cache: a fresh result for the same query in SQLite
//	Layer 2: Scrape: image tags on the tour's public page
//	Layer 3: LLM: ask Claude/OpenAI to search the web
//
// Successful results are cached for cacheTTL.
type ImageSearchService struct {
	searchRepo  storage.SearchRepository // nil disables caching
	scraper     provider.ImageProvider
	llmProvider provider.ImageProvider // nil if no LLM keys configured
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewImageSearchService creates a service with all acquisition layers wired up.
// llmProvider can be nil; the service skips the LLM layer if unconfigured.
func NewImageSearchService(
	searchRepo storage.SearchRepository,
	scraper provider.ImageProvider,
	llmProvider provider.ImageProvider,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ImageSearchService {
	return &ImageSearchService{
		searchRepo:  searchRepo,
		scraper:     scraper,
		llmProvider: llmProvider,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// SearchResult is the ordered list of image URLs plus where it came from.
type SearchResult struct {
	Query  string   `json:"query"`
	Images []string `json:"images"`
	Source string   `json:"source"`
	Cached bool     `json:"cached"`
}

// Search returns de-duplicated image URLs for query, in page order.
// A tour page that exists but has no images yields ErrNoImages; a missing
// page yields provider.ErrNotFound; other failures are returned wrapped.
func (s *ImageSearchService) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if cached := s.fromCache(ctx, query); cached != nil {
		return cached, nil
	}

	s.logger.Info("cache miss, searching images", zap.String("query", query))

	result, err := s.acquire(ctx, query)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, result)
	return &SearchResult{Query: query, Images: result.URLs, Source: result.Source}, nil
}

// fromCache returns nil on any miss; cache errors never fail a search.
func (s *ImageSearchService) fromCache(ctx context.Context, query string) *SearchResult {
	if s.searchRepo == nil || s.cacheTTL <= 0 {
		return nil
	}
	rec, err := s.searchRepo.GetFresh(ctx, query, s.cacheTTL)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading search cache", zap.String("query", query), zap.Error(err))
		}
		return nil
	}
	urls, err := rec.URLList()
	if err != nil || len(urls) == 0 {
		return nil
	}
	return &SearchResult{Query: query, Images: urls, Source: rec.Source, Cached: true}
}

// acquire tries the scraper first (free, fast), then the LLM (paid, slow).
func (s *ImageSearchService) acquire(ctx context.Context, query string) (*provider.ImageResult, error) {
	result, scrapeErr := s.scraper.Search(ctx, query)
	if scrapeErr == nil && len(result.URLs) > 0 {
		s.logger.Info("found images via tour page",
			zap.String("query", query),
			zap.Int("count", len(result.URLs)),
		)
		return result, nil
	}
	if scrapeErr != nil {
		s.logger.Debug("scraper miss", zap.String("query", query), zap.Error(scrapeErr))
	}

	if s.llmProvider != nil {
		llmResult, err := s.llmProvider.Search(ctx, query)
		if err == nil && len(llmResult.URLs) > 0 {
			s.logger.Info("found images via LLM",
				zap.String("query", query),
				zap.String("source", llmResult.Source),
				zap.Int("count", len(llmResult.URLs)),
			)
			return llmResult, nil
		}
		s.logger.Warn("LLM provider miss", zap.String("query", query), zap.Error(err))
	}

	switch {
	case scrapeErr == nil:
		return nil, fmt.Errorf("%q: %w", query, ErrNoImages)
	case errors.Is(scrapeErr, provider.ErrUnsupportedQuery):
		return nil, fmt.Errorf("%q: %w", query, ErrNoImages)
	default:
		return nil, scrapeErr
	}
}

func (s *ImageSearchService) cache(ctx context.Context, result *provider.ImageResult) {
	if s.searchRepo == nil {
		return
	}
	rec, err := model.NewImageSearch(result.Query, result.Source, result.URLs)
	if err == nil {
		err = s.searchRepo.Create(ctx, rec)
	}
	if err != nil {
		s.logger.Error("caching search result", zap.String("query", result.Query), zap.Error(err))
	}
}
