package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImageSearch is a cached result of a remote image search.
// Each field has two tags:
//   - `db:"column_name"`: used by sqlx to scan database rows
//   - `json:"field_name"`: used for JSON serialization (API responses)
type ImageSearch struct {
	ID        int64     `db:"id" json:"id"`
	Query     string    `db:"query" json:"query"`
	Source    string    `db:"source" json:"source"` // "scrape" or "llm:<provider>"
	URLs      string    `db:"urls" json:"-"`        // JSON-encoded []string
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LLMCall tracks each call to an LLM provider for cost monitoring.
type LLMCall struct {
	ID          int64     `db:"id" json:"id"`
	Query       string    `db:"query" json:"query"`
	Provider    string    `db:"provider" json:"provider"`
	Model       string    `db:"model" json:"model"`
	ResultCount *int64    `db:"result_count" json:"result_count,omitempty"`
	Success     bool      `db:"success" json:"success"`
	DurationMs  *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ExportStatus represents the state of a bundle export.
type ExportStatus string

const (
	ExportPending ExportStatus = "pending"
	ExportStored  ExportStatus = "stored"
	ExportFailed  ExportStatus = "failed"
)

// Export records a bundle produced by the export endpoint. Only the resulting
// archive is kept; the content and style that produced it are not.
type Export struct {
	ID           int64        `db:"id" json:"id"`
	Token        string       `db:"token" json:"token"`
	Formats      string       `db:"formats" json:"formats"` // comma separated
	Encoding     string       `db:"encoding" json:"encoding"`
	SizeBytes    int64        `db:"size_bytes" json:"size_bytes"`
	Status       ExportStatus `db:"status" json:"status"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// NewImageSearch builds a cache record for urls.
func NewImageSearch(query, source string, urls []string) (*ImageSearch, error) {
	data, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("encoding urls: %w", err)
	}
	return &ImageSearch{Query: query, Source: source, URLs: string(data)}, nil
}

// URLList decodes the cached URLs.
func (s *ImageSearch) URLList() ([]string, error) {
	var urls []string
	if err := json.Unmarshal([]byte(s.URLs), &urls); err != nil {
		return nil, fmt.Errorf("decoding cached urls for %q: %w", s.Query, err)
	}
	return urls, nil
}
