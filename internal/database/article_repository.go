package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
)

// ArticleRepository handles database operations for stored news articles.
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new article repository.
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Save inserts an article and returns its ID. The article's audience scope
// is folded into persisted columns: city scopes fill the city column with
// the locality tag, industry scopes override main_topic with the industry
// slug. Returns ErrAlreadyProcessed if an article with the same canonical
// URL already exists.
func (r *ArticleRepository) Save(ctx context.Context, article *domain.Article) (int64, error) {
	city := article.City
	mainTopic := article.MainTopic

	if article.AudienceScope != "" {
		c := domain.ParseAudienceScope(article.AudienceScope)
		switch {
		case c.IsCity():
			tag := c.CityTag()
			city = &tag
		case c.Label == domain.LabelIndustry && c.IndustrySlug != "":
			slug := c.IndustrySlug
			mainTopic = &slug
		}
	}

	query := `
		INSERT INTO news_articles (
			url, url_canonical, date, title, summary, summary_medium, summary_long,
			topic, main_topic, topic_2, topic_3, grade, date_posted,
			full_content, meta_data, city
		)
		VALUES ($1, $2, NOW(), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(ctx, &id, query,
		article.URL, article.URLCanonical,
		article.Title, article.SummaryShort, article.SummaryMedium, article.SummaryLong,
		article.Topic, mainTopic, article.Topic2, article.Topic3,
		article.Grade, article.DatePosted,
		article.FullContent, article.MetaData, city,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrAlreadyProcessed, article.URLCanonical)
		}
		return 0, fmt.Errorf("failed to save article: %w", err)
	}

	return id, nil
}

// UpdateEmbedding stamps an article as embedded with its vector store
// document ID.
func (r *ArticleRepository) UpdateEmbedding(ctx context.Context, id int64, vectorID string) error {
	query := `UPDATE news_articles SET is_embedded = TRUE, vector_id = $1 WHERE id = $2`

	result, execErr := r.db.ExecContext(ctx, query, vectorID, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: article %d", ErrNotFound, id))
}
