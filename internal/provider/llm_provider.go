package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/promo-composer/internal/llm"
	"github.com/fleveque/promo-composer/internal/model"
	"github.com/fleveque/promo-composer/internal/storage"
)

// LLMProvider uses an LLM (Claude or OpenAI) to find photos when the tour page
// yields nothing, or when the query is a free-text attraction name.
//
// Rate limited to prevent excessive API costs (~10 calls/minute).
// Tries providers in configured order: first success wins, failures fall through.
type LLMProvider struct {
	clients     []llm.Client // Ordered list: first is primary, rest are fallbacks
	limiter     *rate.Limiter
	maxResults  int
	llmCallRepo storage.LLMCallRepository
	logger      *zap.Logger
}

// NewLLMProvider creates a provider with an ordered list of LLM clients.
// The order is configurable via config.yaml: llm.provider_order: ["anthropic", "openai"]
func NewLLMProvider(
	clients []llm.Client,
	ratePerMinute int,
	maxResults int,
	llmCallRepo storage.LLMCallRepository,
	logger *zap.Logger,
) *LLMProvider {
	if ratePerMinute <= 0 {
		ratePerMinute = 1
	}
	// rate.Every returns a rate.Limit from a time interval between events.
	rps := rate.Every(time.Minute / time.Duration(ratePerMinute))

	return &LLMProvider{
		clients:     clients,
		limiter:     rate.NewLimiter(rps, 1), // burst of 1: strict rate limiting
		maxResults:  maxResults,
		llmCallRepo: llmCallRepo,
		logger:      logger,
	}
}

func (p *LLMProvider) Name() string { return "llm" }

// Search asks LLM providers (in configured order) for image URLs.
func (p *LLMProvider) Search(ctx context.Context, query string) (*ImageResult, error) {
	if len(p.clients) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	var lastErr error

	for i, client := range p.clients {
		// Blocks until a token is available or the context is cancelled.
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		result, err := p.tryProvider(ctx, client, query)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if i < len(p.clients)-1 {
			p.logger.Warn("LLM provider failed, trying next",
				zap.String("query", query),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return nil, fmt.Errorf("all LLM providers failed for %q: %w", query, lastErr)
}

func (p *LLMProvider) tryProvider(ctx context.Context, client llm.Client, query string) (*ImageResult, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client not configured")
	}

	start := time.Now()
	searchResult, err := client.FindImageURLs(ctx, query)
	duration := time.Since(start).Milliseconds()

	var urls []string
	if err == nil {
		urls = dedupe(webURLs(searchResult.URLs), p.maxResults)
	}

	p.recordCall(ctx, client, query, len(urls), err, duration)

	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%s returned no usable image URLs", client.ProviderName())
	}

	return &ImageResult{
		Query:  query,
		URLs:   urls,
		Source: fmt.Sprintf("llm:%s", client.ProviderName()),
	}, nil
}

// webURLs keeps absolute http(s) URLs; models occasionally return relative
// paths or data URIs.
func webURLs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (p *LLMProvider) recordCall(ctx context.Context, client llm.Client, query string, count int, callErr error, durationMs int64) {
	call := &model.LLMCall{
		Query:    query,
		Provider: client.ProviderName(),
		Model:    client.ModelName(),
		Success:  callErr == nil && count > 0,
	}
	call.DurationMs = &durationMs
	if callErr == nil {
		n := int64(count)
		call.ResultCount = &n
	}

	if err := p.llmCallRepo.Create(ctx, call); err != nil {
		p.logger.Error("recording LLM call", zap.Error(err))
	}
}
