package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/llm"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/urlutil"
)

// minArticleChars is the shortest body worth summarizing; anything
// below it is junk navigation or a paywall stub.
const minArticleChars = 50

// runArticle processes one article end to end: canonicalize, dedup,
// extract (unless the payload carries pre-extracted content), classify
// (unless pre-computed), summarize, resolve the publication date, save,
// record the URL as processed, and embed best-effort.
func (p *Pipeline) runArticle(ctx context.Context, payload *domain.ArticlePayload) error {
	canonical, err := urlutil.Canonicalize(payload.URL)
	if err != nil {
		return fmt.Errorf("failed to canonicalize %s: %w", payload.URL, err)
	}

	status, err := p.processed.Check(ctx, canonical)
	if err != nil {
		return fmt.Errorf("failed to check processed url: %w", err)
	}
	if status != "" {
		p.log.Info("url already processed",
			logger.String("url", canonical),
			logger.String("status", status),
		)
		return nil
	}

	content := payload.Content
	if content == nil {
		content, err = p.extractor.Extract(ctx, payload.URL)
		if err != nil {
			return fmt.Errorf("extraction failed for %s: %w", payload.URL, err)
		}
	} else {
		p.log.Debug("using pre-extracted content", logger.String("url", payload.URL))
	}

	var classification domain.Classification
	if payload.Classification != nil {
		classification = *payload.Classification
		p.log.Debug("using pre-computed classification",
			logger.String("url", payload.URL),
			logger.String("label", classification.Label),
		)
	} else {
		classification = p.llm.Classify(ctx, content.Title, content.Text, payload.URL)
	}

	if classification.IsTrash() {
		return p.discard(ctx, canonical, "classified as trash")
	}
	if len(strings.TrimSpace(content.Text)) < minArticleChars {
		return p.discard(ctx, canonical, "insufficient content")
	}

	summary, err := p.llm.Summarize(ctx, classification, content)
	if err != nil {
		return fmt.Errorf("summary failed for %s: %w", payload.URL, err)
	}

	datePosted, dateMethod := p.resolveDate(ctx, content)

	article := buildArticle(payload.URL, canonical, content, classification, summary, datePosted)

	articleID, err := p.articles.Save(ctx, article)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyProcessed) {
			p.log.Info("article already saved by another worker",
				logger.String("url", canonical),
			)
			return nil
		}
		return fmt.Errorf("failed to save article: %w", err)
	}
	article.ID = articleID
	p.tel.RecordArticlesSaved(1)

	if err := p.processed.Save(ctx, canonical, domain.ProcessedStatusProcessed, classification.CityTag()); err != nil &&
		!errors.Is(err, database.ErrAlreadyProcessed) {
		return fmt.Errorf("failed to record processed url: %w", err)
	}

	if p.embedder != nil {
		if err := p.embedder.EmbedArticle(ctx, article); err != nil {
			p.log.Warn("embedding failed",
				logger.Int64("article_id", articleID),
				logger.Error(err),
			)
		}
	}

	p.log.Info("article processed",
		logger.String("url", canonical),
		logger.Int64("article_id", articleID),
		logger.String("scope", classification.AudienceScope()),
		logger.String("date_method", dateMethod),
	)
	return nil
}

// runArticleInline processes an article job that a source crawl just
// enqueued and is executing in the same pass. Success finishes the
// queued row; failure leaves it queued so a worker retries it later.
func (p *Pipeline) runArticleInline(ctx context.Context, jobID int64, payload *domain.ArticlePayload) error {
	if err := p.runArticle(ctx, payload); err != nil {
		return err
	}
	if err := p.jobs.MarkDone(ctx, jobID); err != nil {
		p.log.Warn("failed to finish inline article job",
			logger.Int64("job_id", jobID),
			logger.Error(err),
		)
	}
	return nil
}

// discard registers canonical as trash and ends the job cleanly.
func (p *Pipeline) discard(ctx context.Context, canonical, reason string) error {
	if err := p.processed.Save(ctx, canonical, domain.ProcessedStatusTrash, ""); err != nil &&
		!errors.Is(err, database.ErrAlreadyProcessed) {
		return fmt.Errorf("failed to record trash url: %w", err)
	}
	p.log.Info("article discarded",
		logger.String("url", canonical),
		logger.String("reason", reason),
	)
	return nil
}

// resolveDate returns the publication date for content. Payloads whose
// content already carries a date method were resolved before being
// enqueued and are trusted as-is; everything else runs the cascade.
func (p *Pipeline) resolveDate(ctx context.Context, content *domain.ExtractedContent) (*time.Time, string) {
	if content.DateMethod != "" {
		if content.Date == nil {
			return nil, content.DateMethod
		}
		if d, err := time.Parse(time.RFC3339, *content.Date); err == nil {
			return &d, content.DateMethod
		}
		p.log.Warn("stored date unparseable, re-running cascade",
			logger.String("raw", *content.Date),
		)
	}
	return p.dates.Resolve(ctx, content)
}

// buildArticle assembles the row to persist. Medium and long summaries
// are kept only for city-scoped articles; the first two subtopics fill
// topic_2 and topic_3.
func buildArticle(rawURL, canonical string, content *domain.ExtractedContent, classification domain.Classification, summary *llm.Summary, datePosted *time.Time) *domain.Article {
	title := summary.Title
	if title == "" {
		title = content.Title
	}

	article := &domain.Article{
		URL:           rawURL,
		URLCanonical:  canonical,
		Title:         optional(title),
		SummaryShort:  optional(summary.ShortSummary),
		Topic:         optional(summary.Topic),
		MainTopic:     optional(summary.MainTopic),
		Grade:         int(summary.Score),
		DatePosted:    datePosted,
		FullContent:   optional(content.Text),
		MetaData:      metadataMap(content.Metadata),
		AudienceScope: classification.AudienceScope(),
	}

	if classification.IsCity() {
		article.SummaryMedium = optional(summary.MediumSummary)
		article.SummaryLong = optional(summary.LongSummary)
		article.City = optional(classification.CitySlug)
	}
	if len(summary.Subtopics) > 0 {
		article.Topic2 = optional(summary.Subtopics[0])
	}
	if len(summary.Subtopics) > 1 {
		article.Topic3 = optional(summary.Subtopics[1])
	}
	return article
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func metadataMap(metadata map[string]string) domain.JSONBMap {
	if len(metadata) == 0 {
		return nil
	}
	m := make(domain.JSONBMap, len(metadata))
	for k, v := range metadata {
		m[k] = v
	}
	return m
}
