package provider

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// imgSrc matches the src attribute of <img> tags.
var imgSrc = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

var tourID = regexp.MustCompile(`^[0-9]+$`)

// TourPageProvider scrapes photo URLs from a tour's public page.
// Only images served from allowed hosts (the media CDNs) are kept, which
// filters out icons, logos and tracking pixels.
type TourPageProvider struct {
	urlTemplate  string   // e.g., "https://www.headout.com/tour/%s"
	allowedHosts []string // substrings, e.g., ["cloudfront.net", "headout-media"]
	maxResults   int
	client       *http.Client
	logger       *zap.Logger
}

// NewTourPageProvider creates a scraper for pages built from urlTemplate.
func NewTourPageProvider(urlTemplate string, allowedHosts []string, maxResults int, logger *zap.Logger) *TourPageProvider {
	return &TourPageProvider{
		urlTemplate:  urlTemplate,
		allowedHosts: allowedHosts,
		maxResults:   maxResults,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (p *TourPageProvider) Name() string {
	return "scrape"
}

// Search fetches the tour page for a numeric tour ID and extracts its images.
// Non-numeric queries return ErrUnsupportedQuery.
func (p *TourPageProvider) Search(ctx context.Context, query string) (*ImageResult, error) {
	query = strings.TrimSpace(query)
	if !tourID.MatchString(query) {
		return nil, fmt.Errorf("tour page search needs a numeric tour ID, got %q: %w", query, ErrUnsupportedQuery)
	}

	pageURL := fmt.Sprintf(p.urlTemplate, query)
	page, err := fetch(ctx, p.client, pageURL, 5<<20)
	if err != nil {
		return nil, fmt.Errorf("fetching tour %s: %w", query, err)
	}

	urls := p.extract(string(page))
	p.logger.Debug("scraped tour page",
		zap.String("query", query),
		zap.String("url", pageURL),
		zap.Int("images", len(urls)),
	)

	return &ImageResult{
		Query:  query,
		URLs:   urls,
		Source: p.Name(),
	}, nil
}

// extract returns allowed image URLs from page in document order.
func (p *TourPageProvider) extract(page string) []string {
	var candidates []string
	for _, m := range imgSrc.FindAllStringSubmatch(page, -1) {
		// Attribute values may carry entities such as &amp; in query strings.
		src := html.UnescapeString(m[1])
		if p.allowed(src) {
			candidates = append(candidates, src)
		}
	}
	return dedupe(candidates, p.maxResults)
}

func (p *TourPageProvider) allowed(src string) bool {
	for _, host := range p.allowedHosts {
		if strings.Contains(src, host) {
			return true
		}
	}
	return false
}
