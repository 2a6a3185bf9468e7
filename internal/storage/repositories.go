package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/promo-composer/internal/model"
)

// ErrNotFound is returned when a record doesn't exist in the database.
// Go uses sentinel errors (predefined error values) instead of exception types.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("record not found")

// SearchRepository caches remote image search results.
// Go interfaces are implicit: any struct that has these methods satisfies it,
// so tests can swap in a fake without touching SQLite.
type SearchRepository interface {
	// GetFresh returns the newest result for query no older than maxAge.
	GetFresh(ctx context.Context, query string, maxAge time.Duration) (*model.ImageSearch, error)
	Create(ctx context.Context, search *model.ImageSearch) error
	Count(ctx context.Context) (int64, error)
}

type sqliteSearchRepository struct {
	db *sqlx.DB
}

// NewSearchRepository creates a new SQLite-backed SearchRepository.
func NewSearchRepository(db *sqlx.DB) SearchRepository {
	return &sqliteSearchRepository{db: db}
}

func (r *sqliteSearchRepository) GetFresh(ctx context.Context, query string, maxAge time.Duration) (*model.ImageSearch, error) {
	var search model.ImageSearch
	// The age check runs in SQLite so both sides of the comparison use its
	// own timestamp format.
	modifier := fmt.Sprintf("-%d seconds", int64(maxAge.Seconds()))
	err := r.db.GetContext(ctx, &search, `
		SELECT * FROM image_searches
		WHERE query = ? AND created_at >= datetime('now', ?)
		ORDER BY id DESC LIMIT 1
	`, query, modifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting cached search %q: %w", query, err)
	}
	return &search, nil
}

func (r *sqliteSearchRepository) Create(ctx context.Context, search *model.ImageSearch) error {
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO image_searches (query, source, urls)
		VALUES (:query, :source, :urls)
	`, search)
	if err != nil {
		return fmt.Errorf("caching search: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	search.ID = id
	return nil
}

func (r *sqliteSearchRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM image_searches")
	return count, err
}

// LLMCallRepository handles persistence of LLM call tracking.
type LLMCallRepository interface {
	Create(ctx context.Context, call *model.LLMCall) error
	CountByQuery(ctx context.Context, query string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type sqliteLLMCallRepository struct {
	db *sqlx.DB
}

// NewLLMCallRepository creates a new SQLite-backed LLMCallRepository.
func NewLLMCallRepository(db *sqlx.DB) LLMCallRepository {
	return &sqliteLLMCallRepository{db: db}
}

func (r *sqliteLLMCallRepository) Create(ctx context.Context, call *model.LLMCall) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_calls (query, provider, model, result_count, success, duration_ms)
		VALUES (:query, :provider, :model, :result_count, :success, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating llm call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteLLMCallRepository) CountByQuery(ctx context.Context, query string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls WHERE query = ?", query)
	return count, err
}

func (r *sqliteLLMCallRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls")
	return count, err
}

// ExportRepository records bundle exports.
type ExportRepository interface {
	Create(ctx context.Context, export *model.Export) error
	GetByToken(ctx context.Context, token string) (*model.Export, error)
	MarkStored(ctx context.Context, token string, sizeBytes int64) error
	MarkFailed(ctx context.Context, token string, errMsg string) error
	CountByStatus(ctx context.Context, status model.ExportStatus) (int64, error)
}

type sqliteExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository creates a new SQLite-backed ExportRepository.
func NewExportRepository(db *sqlx.DB) ExportRepository {
	return &sqliteExportRepository{db: db}
}

func (r *sqliteExportRepository) Create(ctx context.Context, export *model.Export) error {
	if export.Status == "" {
		export.Status = model.ExportPending
	}
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO exports (token, formats, encoding, status)
		VALUES (:token, :formats, :encoding, :status)
	`, export)
	if err != nil {
		return fmt.Errorf("creating export record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	export.ID = id
	return nil
}

func (r *sqliteExportRepository) GetByToken(ctx context.Context, token string) (*model.Export, error) {
	var export model.Export
	err := r.db.GetContext(ctx, &export, "SELECT * FROM exports WHERE token = ?", token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting export %s: %w", token, err)
	}
	return &export, nil
}

func (r *sqliteExportRepository) MarkStored(ctx context.Context, token string, sizeBytes int64) error {
	return r.update(ctx, token,
		"UPDATE exports SET status = ?, size_bytes = ?, error_message = NULL WHERE token = ?",
		model.ExportStored, sizeBytes, token)
}

func (r *sqliteExportRepository) MarkFailed(ctx context.Context, token string, errMsg string) error {
	return r.update(ctx, token,
		"UPDATE exports SET status = ?, error_message = ? WHERE token = ?",
		model.ExportFailed, errMsg, token)
}

func (r *sqliteExportRepository) update(ctx context.Context, token, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating export %s: %w", token, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating export %s: %w", token, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteExportRepository) CountByStatus(ctx context.Context, status model.ExportStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM exports WHERE status = ?", status)
	return count, err
}
