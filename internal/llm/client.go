// Package llm provides a provider-agnostic interface for using LLMs to find
// candidate poster photos via web search. The LLM searches the web for images
// of a tour or attraction and returns direct image URLs.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// ImageSearchResult contains the result of an LLM-powered image search.
type ImageSearchResult struct {
	URLs       []string // Direct image URLs, best first
	Title      string   // Name of the tour or attraction the images show
	Source     string   // Where the images were found (e.g., "headout.com")
	Confidence string   // "high", "medium", "low"
}

// Client is the interface for LLM providers that can search for images.
// Both Anthropic (Claude) and OpenAI implement this interface, allowing
// the provider layer to fall back from one to the other.
//
// Go interface design tip: keep interfaces small. The bigger the interface,
// the harder it is to implement and mock.
type Client interface {
	FindImageURLs(ctx context.Context, query string) (*ImageSearchResult, error)
	ProviderName() string
	ModelName() string
}

const submitToolName = "submit_image_urls"

// maxTurns bounds the tool-calling loop of both clients.
const maxTurns = 5

// submitImageResult is the schema of the custom tool the model calls to return
// results. A tool gives us structured data instead of free-form text.
type submitImageResult struct {
	ImageURLs  []string `json:"image_urls"`
	Title      string   `json:"title"`
	Source     string   `json:"source"`
	Confidence string   `json:"confidence"`
}

// toResult drops blank and duplicate URLs, keeping the model's order.
func (s submitImageResult) toResult(query string) (*ImageSearchResult, error) {
	seen := make(map[string]bool, len(s.ImageURLs))
	urls := make([]string, 0, len(s.ImageURLs))
	for _, u := range s.ImageURLs {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no image URLs submitted for %q", query)
	}
	return &ImageSearchResult{
		URLs:       urls,
		Title:      s.Title,
		Source:     s.Source,
		Confidence: s.Confidence,
	}, nil
}

// imageSchemaProperties is the JSON schema shared by both providers' submit tool.
func imageSchemaProperties() map[string]interface{} {
	return map[string]interface{}{
		"image_urls": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "Direct URLs to photos (JPG, PNG or WebP), best first. Must be image files, not webpages.",
		},
		"title": map[string]interface{}{
			"type":        "string",
			"description": "Name of the tour or attraction shown in the photos.",
		},
		"source": map[string]interface{}{
			"type":        "string",
			"description": "The website where the photos were found.",
		},
		"confidence": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"high", "medium", "low"},
			"description": "How confident you are the photos show the requested tour.",
		},
	}
}

// buildPrompt creates the user prompt for the LLM. Numeric queries are
// treated as Headout tour IDs; anything else as a free-text attraction name.
func buildPrompt(query string) string {
	subject := fmt.Sprintf("the tour or attraction %q", query)
	if isNumeric(query) {
		subject = fmt.Sprintf("Headout tour number %s (https://www.headout.com/tour/%s)", query, query)
	}

	return fmt.Sprintf(`Find promotional photos for %s.

Search the web for high-quality landscape or portrait photos of the experience. Prefer:
1. The official tour or attraction page
2. Image CDNs used by those pages (for example cloudfront.net)
3. Well-known travel sites

Requirements for each URL:
- Must be a DIRECT link to an image file, not an HTML page
- Must be at least 800 pixels on the longer side
- Must show the attraction itself, not a logo, icon, map or avatar
- Must be publicly accessible (no authentication required)

Return up to 10 URLs, best first, by calling the %s tool.
If you cannot find suitable photos, explain why in your response.`, subject, submitToolName)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
