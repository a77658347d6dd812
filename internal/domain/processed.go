package domain

import "time"

// Processed URL status constants. Pending exists at the schema level
// but the pipeline only ever writes trash and processed.
const (
	ProcessedStatusTrash     = "trash"
	ProcessedStatusProcessed = "processed"
	ProcessedStatusPending   = "pending"
)

// ProcessedURL marks a canonical URL the pipeline has already seen.
// Rows are insert-only; a unique violation on url means another worker
// got there first.
type ProcessedURL struct {
	URL        string    `db:"url"               json:"url"`
	City       string    `db:"city"              json:"city"`
	ScrapeDate time.Time `db:"scrape_date"       json:"scrape_date"`
	IsNews     bool      `db:"is_news"           json:"is_news"`
	Status     string    `db:"processing_status" json:"processing_status"`
}

// ProcessedIsNews derives the is_news flag from a processing status.
func ProcessedIsNews(status string) bool {
	return status != ProcessedStatusTrash
}
