package domain

import (
	"fmt"
	"time"
)

// Article represents a row in news_articles. Medium and long summaries
// are populated only for city-scoped articles; the audience scope is
// carried as a tag and unpacked into the city column on save.
type Article struct {
	ID            int64     `db:"id"             json:"id"`
	URL           string    `db:"url"            json:"url"`
	URLCanonical  string    `db:"url_canonical"  json:"url_canonical"`
	Date          time.Time `db:"date"           json:"date"`
	Title         *string   `db:"title"          json:"title,omitempty"`
	SummaryShort  *string   `db:"summary"        json:"summary,omitempty"`
	SummaryMedium *string   `db:"summary_medium" json:"summary_medium,omitempty"`
	SummaryLong   *string   `db:"summary_long"   json:"summary_long,omitempty"`
	Topic         *string   `db:"topic"          json:"topic,omitempty"`
	MainTopic     *string   `db:"main_topic"     json:"main_topic,omitempty"`
	Topic2        *string   `db:"topic_2"        json:"topic_2,omitempty"`
	Topic3        *string   `db:"topic_3"        json:"topic_3,omitempty"`
	Grade         int       `db:"grade"          json:"grade"`

	DatePosted *time.Time `db:"date_posted" json:"date_posted,omitempty"`

	IsEmbedded bool    `db:"is_embedded" json:"is_embedded"`
	VectorID   *string `db:"vector_id"   json:"vector_id,omitempty"`

	FullContent *string  `db:"full_content" json:"full_content,omitempty"`
	MetaData    JSONBMap `db:"meta_data"    json:"meta_data,omitempty"`
	City        *string  `db:"city"         json:"city,omitempty"`

	// AudienceScope is not a column of its own; SaveArticle folds it
	// into city or main_topic depending on the label.
	AudienceScope string `db:"-" json:"audience_scope"`
}

// VectorDocID returns the vector-store document id for an article.
func VectorDocID(articleID int64) string {
	return fmt.Sprintf("article_%d", articleID)
}
