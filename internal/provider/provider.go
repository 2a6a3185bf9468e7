// Package provider defines the interface for remote image search sources.
// Each provider (tour page scraper, LLM) implements this interface to supply
// candidate photo URLs for a poster.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNotFound means the source has no page for the query (e.g. HTTP 404).
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedQuery means the provider cannot handle this kind of query
	// and the caller should move on to the next one.
	ErrUnsupportedQuery = errors.New("unsupported query")
)

const userAgent = "promo-composer/1.0"

// ImageResult is an ordered, de-duplicated list of candidate image URLs.
type ImageResult struct {
	Query  string
	URLs   []string
	Source string // e.g., "scrape" or "llm:anthropic"
}

// ImageProvider is the interface for image search sources.
type ImageProvider interface {
	// Search returns candidate image URLs for query. An empty URL list is a
	// valid result; a missing page is ErrNotFound.
	Search(ctx context.Context, query string) (*ImageResult, error)

	// Name returns a human-readable name for the provider.
	Name() string
}

// fetch GETs url and reads at most limit bytes of the body.
// A 404 maps to ErrNotFound.
func fetch(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	// io.LimitReader wraps a reader with a max byte count, a common safety pattern.
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}

// dedupe drops blank and repeated URLs, keeps first-seen order and stops at max
// (max <= 0 means unlimited).
func dedupe(urls []string, max int) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
