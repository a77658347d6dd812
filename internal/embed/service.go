package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

const defaultMaxConcurrent = 5

// Embedder produces a vector for one text. Satisfied by *Provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSink stores vector documents. Satisfied by *Sink.
type VectorSink interface {
	Upsert(ctx context.Context, docID string, doc Document) error
}

// ArticleUpdater marks an article row as embedded. Satisfied by
// *database.ArticleRepository.
type ArticleUpdater interface {
	UpdateEmbedding(ctx context.Context, id int64, vectorID string) error
}

// Service embeds saved articles. In-flight requests are bounded by a
// semaphore so a burst of saves cannot flood the embeddings endpoint.
type Service struct {
	embedder Embedder
	sink     VectorSink
	articles ArticleUpdater
	sem      chan struct{}
	tel      *telemetry.Provider
	log      logger.Logger
	now      func() time.Time
}

// NewService builds a Service. maxConcurrent bounds in-flight
// embeddings; values below one fall back to the default of five.
func NewService(embedder Embedder, sink VectorSink, articles ArticleUpdater, maxConcurrent int, tel *telemetry.Provider, log logger.Logger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Service{
		embedder: embedder,
		sink:     sink,
		articles: articles,
		sem:      make(chan struct{}, maxConcurrent),
		tel:      tel,
		log:      log,
		now:      time.Now,
	}
}

// EmbedArticle vectorizes one saved article, upserts the vector, and
// marks the row embedded. The caller decides what a failure means; the
// article pipeline logs it and moves on.
func (s *Service) EmbedArticle(ctx context.Context, article *domain.Article) error {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	text := embeddingText(article)
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.tel.RecordEmbedding(err)
		return fmt.Errorf("failed to generate embedding for article %d: %w", article.ID, err)
	}

	docID := domain.VectorDocID(article.ID)
	if err := s.sink.Upsert(ctx, docID, s.buildDocument(article, vector)); err != nil {
		s.tel.RecordEmbedding(err)
		return fmt.Errorf("failed to store vector for article %d: %w", article.ID, err)
	}

	if err := s.articles.UpdateEmbedding(ctx, article.ID, docID); err != nil {
		s.tel.RecordEmbedding(err)
		return fmt.Errorf("failed to mark article %d embedded: %w", article.ID, err)
	}

	s.tel.RecordEmbedding(nil)
	s.log.Debug("article embedded",
		logger.Int64("article_id", article.ID),
		logger.String("vector_id", docID),
	)
	return nil
}

// embeddingText flattens the article into the labeled-section text the
// vectors are computed over. Absent sections are omitted entirely.
func embeddingText(article *domain.Article) string {
	parts := []string{"[TITLE]: " + deref(article.Title)}

	city, state := splitCitySlug(article.City)
	if location := joinNonEmpty(city, state); location != "" {
		parts = append(parts, "[LOCATION]: "+location)
	}
	if topics := articleTopics(article); len(topics) > 0 {
		parts = append(parts, "[TOPICS]: "+strings.Join(topics, ", "))
	}
	if summary := deref(article.SummaryShort); summary != "" {
		parts = append(parts, "[SUMMARY]: "+summary)
	}
	return strings.Join(parts, "\n")
}

func (s *Service) buildDocument(article *domain.Article, vector []float32) Document {
	city, state := splitCitySlug(article.City)
	location := city
	if city != "" && state != "" {
		location = city + "," + state
	}

	var datePosted *string
	if article.DatePosted != nil {
		iso := article.DatePosted.UTC().Format(time.RFC3339)
		datePosted = &iso
	}

	return Document{
		ArticleID:   fmt.Sprintf("%d", article.ID),
		URL:         article.URL,
		Title:       deref(article.Title),
		Summary:     deref(article.SummaryShort),
		DatePosted:  datePosted,
		Location:    location,
		Topics:      articleTopics(article),
		LastUpdated: s.now().UTC().Format(time.RFC3339),
		Embedding:   vector,
	}
}

// articleTopics collects the article's topic fields in rank order,
// dropping blanks and duplicates.
func articleTopics(article *domain.Article) []string {
	var topics []string
	for _, t := range []*string{article.MainTopic, article.Topic, article.Topic2, article.Topic3} {
		value := strings.TrimSpace(deref(t))
		if value == "" {
			continue
		}
		seen := false
		for _, existing := range topics {
			if existing == value {
				seen = true
				break
			}
		}
		if !seen {
			topics = append(topics, value)
		}
	}
	return topics
}

// splitCitySlug breaks a "City, ST" slug into its parts. Slugs without
// a comma yield an empty state.
func splitCitySlug(slug *string) (city, state string) {
	if slug == nil {
		return "", ""
	}
	parts := strings.SplitN(*slug, ",", 2)
	city = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		state = strings.TrimSpace(parts[1])
	}
	return city, state
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
