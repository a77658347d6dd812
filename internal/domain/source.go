package domain

import "time"

// Source table names. The primary table is the only one whose
// last_scraped_at column the pipeline advances.
const (
	SourceTablePrimary = "news_sources"
	SourceTableCity    = "city_sources"
)

// ValidSourceTable reports whether t names a known sources table.
func ValidSourceTable(t string) bool {
	return t == SourceTablePrimary || t == SourceTableCity
}

// Source is a row from one of the sources tables. The pipeline reads a
// handful of columns and tolerates either source_url or url carrying
// the address.
type Source struct {
	ID               string     `db:"id"                 json:"id"`
	Name             *string    `db:"name"               json:"name,omitempty"`
	URL              *string    `db:"url"                json:"url,omitempty"`
	SourceURL        *string    `db:"source_url"         json:"source_url,omitempty"`
	HasBeenProcessed bool       `db:"has_been_processed" json:"has_been_processed"`
	Verified         bool       `db:"verified"           json:"verified"`
	LastScrapedAt    *time.Time `db:"last_scraped_at"    json:"last_scraped_at,omitempty"`

	// Table records which sources table the row came from. Not a column.
	Table string `db:"-" json:"source_table,omitempty"`
}

// Address returns the source's URL, preferring source_url over url.
// Empty when the row carries neither.
func (s *Source) Address() string {
	if s.SourceURL != nil && *s.SourceURL != "" {
		return *s.SourceURL
	}
	if s.URL != nil && *s.URL != "" {
		return *s.URL
	}
	return ""
}
