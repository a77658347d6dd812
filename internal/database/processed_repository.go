package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
)

// defaultProcessedCity fills the city column when the caller has no
// locality for the URL.
const defaultProcessedCity = "unknown"

// ProcessedURLRepository handles database operations for the processed-URL
// dedup registry.
type ProcessedURLRepository struct {
	db *sqlx.DB
}

// NewProcessedURLRepository creates a new processed-URL repository.
func NewProcessedURLRepository(db *sqlx.DB) *ProcessedURLRepository {
	return &ProcessedURLRepository{db: db}
}

// Check returns the effective processed status for a canonical URL: trash,
// processed, or "" when the URL should still be processed. The legacy "done"
// value maps to processed; "pending" and unknown values count as unprocessed.
func (r *ProcessedURLRepository) Check(ctx context.Context, url string) (string, error) {
	query := `SELECT processing_status FROM processed_news_urls WHERE url = $1`

	var status string
	err := r.db.GetContext(ctx, &status, query, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to check processed URL: %w", err)
	}

	switch status {
	case domain.ProcessedStatusTrash:
		return domain.ProcessedStatusTrash, nil
	case domain.ProcessedStatusProcessed, "done":
		return domain.ProcessedStatusProcessed, nil
	default:
		return "", nil
	}
}

// Save records a canonical URL in the dedup registry. City defaults to
// "unknown". Statuses other than trash or processed are stored as pending.
// Returns ErrAlreadyProcessed if the URL is already recorded; callers treat
// that as benign.
func (r *ProcessedURLRepository) Save(ctx context.Context, url, status, city string) error {
	if city == "" {
		city = defaultProcessedCity
	}
	if status != domain.ProcessedStatusTrash && status != domain.ProcessedStatusProcessed {
		status = domain.ProcessedStatusPending
	}

	query := `
		INSERT INTO processed_news_urls (url, city, scrape_date, is_news, processing_status)
		VALUES ($1, $2, NOW(), $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, url, city, domain.ProcessedIsNews(status), status)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyProcessed, url)
		}
		return fmt.Errorf("failed to save processed URL: %w", err)
	}

	return nil
}
