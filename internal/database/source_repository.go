package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
)

// staleSourceInterval is how long a source must go unscraped before batch
// selection picks it up again.
const staleSourceInterval = "24 hours"

// SourceRepository handles database operations for news sources. Sources
// live in two tables with different shapes, so lookups interpolate the
// table name after validating it against the known set.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Get loads a source by ID from the given table. Only columns both tables
// share are selected. Returns ErrNotFound if the source does not exist.
func (r *SourceRepository) Get(ctx context.Context, table, id string) (*domain.Source, error) {
	if !domain.ValidSourceTable(table) {
		return nil, fmt.Errorf("invalid source table: %s", table)
	}

	query := fmt.Sprintf(`SELECT id, name, url, source_url FROM %s WHERE id = $1`, table)

	var source domain.Source
	err := r.db.GetContext(ctx, &source, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: source %s in %s", ErrNotFound, id, table)
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	source.Table = table
	return &source, nil
}

// SelectForBatch returns up to batchSize verified, processed sources from
// the primary table that have not been scraped in the last 24 hours,
// never-scraped sources first. An optional query filters on source name.
func (r *SourceRepository) SelectForBatch(ctx context.Context, batchSize int, query string) ([]*domain.Source, error) {
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}

	selectQuery := `
		SELECT id, name, url, source_url, has_been_processed, verified, last_scraped_at
		FROM news_sources
		WHERE has_been_processed = TRUE
		  AND verified = TRUE
		  AND (last_scraped_at IS NULL OR last_scraped_at < NOW() - INTERVAL '` + staleSourceInterval + `')
	`
	args := []any{}
	if query != "" {
		selectQuery += ` AND name ILIKE $2`
		args = append(args, "%"+query+"%")
	}
	selectQuery += `
		ORDER BY last_scraped_at ASC NULLS FIRST
		LIMIT $1
	`
	args = append([]any{batchSize}, args...)

	var sources []*domain.Source
	if err := r.db.SelectContext(ctx, &sources, selectQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to select sources for batch: %w", err)
	}

	for _, s := range sources {
		s.Table = domain.SourceTablePrimary
	}
	if sources == nil {
		sources = []*domain.Source{}
	}
	return sources, nil
}

// UpdateScrapedAt stamps last_scraped_at on a primary-table source. Callers
// skip this for the city table, which has no such column.
func (r *SourceRepository) UpdateScrapedAt(ctx context.Context, id string) error {
	query := `UPDATE news_sources SET last_scraped_at = NOW() WHERE id = $1`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: source %s", ErrNotFound, id))
}
