package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/urlutil"
)

// runSource crawls one source page: collect candidate links, filter
// them down, and run the article pipeline inline on each survivor. The
// returned counters are the job's progress delta; they are valid even
// when an error is returned, though every error path precedes the loop.
func (p *Pipeline) runSource(ctx context.Context, payload *domain.SourcePayload) (domain.JobCounters, error) {
	var counters domain.JobCounters

	sourceURL, err := p.resolveSourceURL(ctx, payload)
	if err != nil {
		return counters, err
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = domain.DefaultSourceLimit
	}

	links, err := p.extractor.CollectLinks(ctx, sourceURL)
	if err != nil {
		return counters, fmt.Errorf("failed to collect links from %s: %w", sourceURL, err)
	}
	// Collect extra links to absorb skips, but bound the loop.
	if len(links) > 2*limit {
		links = links[:2*limit]
	}
	if len(links) == 0 {
		p.log.Warn("no article links found", logger.String("source_url", sourceURL))
		return counters, nil
	}
	p.log.Info("collected candidate links",
		logger.String("source_url", sourceURL),
		logger.Int("count", len(links)),
	)

	for _, link := range links {
		if counters.ArticlesSaved+counters.LinksSkipped >= limit {
			p.log.Info("reached link limit for source",
				logger.String("source_url", sourceURL),
				logger.Int("limit", limit),
			)
			break
		}
		p.processLink(ctx, link, sourceURL, payload.SourceID, &counters)
	}

	p.log.Info("source crawl finished",
		logger.String("source_url", sourceURL),
		logger.Int("articles_saved", counters.ArticlesSaved),
		logger.Int("links_skipped", counters.LinksSkipped),
		logger.Int("errors", counters.Errors),
	)

	p.stampSource(ctx, payload)
	return counters, nil
}

// processLink runs one candidate link through dedup, URL validation,
// extraction, classification, and finally an inline article job. Every
// outcome lands in exactly one counter.
func (p *Pipeline) processLink(ctx context.Context, link, sourceURL, sourceID string, counters *domain.JobCounters) {
	canonical, err := urlutil.Canonicalize(link)
	if err != nil {
		p.log.Warn("unusable link", logger.String("url", link), logger.Error(err))
		counters.Errors++
		return
	}

	status, err := p.processed.Check(ctx, canonical)
	if err != nil {
		p.log.Warn("dedup check failed", logger.String("url", canonical), logger.Error(err))
		counters.Errors++
		return
	}
	if status != "" {
		counters.LinksSkipped++
		p.tel.RecordLinksSkipped(1)
		return
	}

	if verdict := urlutil.ValidateArticleURL(link, sourceURL); !verdict.Valid {
		p.log.Debug("link rejected by validator",
			logger.String("url", link),
			logger.String("reason", verdict.Reason),
		)
		p.saveTrash(ctx, canonical)
		counters.LinksSkipped++
		p.tel.RecordLinksSkipped(1)
		return
	}

	content, err := p.extractor.Extract(ctx, link)
	if err != nil {
		p.log.Warn("extraction failed", logger.String("url", link), logger.Error(err))
		counters.Errors++
		return
	}

	classification := p.llm.Classify(ctx, content.Title, content.Text, link)
	if classification.IsTrash() {
		p.saveTrash(ctx, canonical)
		counters.LinksSkipped++
		p.tel.RecordLinksSkipped(1)
		return
	}

	articlePayload := &domain.ArticlePayload{
		URL:            link,
		SourceID:       sourceID,
		Content:        content,
		Classification: &classification,
	}
	raw, err := domain.EncodePayload(articlePayload)
	if err != nil {
		p.log.Warn("failed to encode article payload", logger.String("url", link), logger.Error(err))
		counters.Errors++
		return
	}
	jobID, err := p.jobs.Enqueue(ctx, domain.JobTypeArticle, raw)
	if err != nil {
		p.log.Warn("failed to enqueue article job", logger.String("url", link), logger.Error(err))
		counters.Errors++
		return
	}

	// Run the article inline. On failure the queued row survives so a
	// worker can retry it later.
	if err := p.runArticleInline(ctx, jobID, articlePayload); err != nil {
		p.log.Warn("inline article processing failed",
			logger.String("url", link),
			logger.Int64("job_id", jobID),
			logger.Error(err),
		)
		counters.Errors++
		return
	}
	counters.ArticlesSaved++
}

// resolveSourceURL picks the crawl URL: the payload's own URL wins,
// otherwise the source row's address. A source job pointing at nothing
// is a hard failure.
func (p *Pipeline) resolveSourceURL(ctx context.Context, payload *domain.SourcePayload) (string, error) {
	if payload.URL != "" {
		return payload.URL, nil
	}

	table := payload.SourceTable
	if table == "" {
		table = domain.SourceTablePrimary
	}
	source, err := p.sources.Get(ctx, table, payload.SourceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", fmt.Errorf("source %s not found in table %s", payload.SourceID, table)
		}
		return "", fmt.Errorf("failed to load source %s: %w", payload.SourceID, err)
	}

	address := source.Address()
	if address == "" {
		return "", fmt.Errorf("source %s has no URL", payload.SourceID)
	}
	return address, nil
}

// stampSource updates last_scraped_at, but only for rows in the primary
// sources table; city sources carry no scrape timestamp.
func (p *Pipeline) stampSource(ctx context.Context, payload *domain.SourcePayload) {
	if payload.SourceID == "" {
		return
	}
	table := payload.SourceTable
	if table == "" {
		table = domain.SourceTablePrimary
	}
	if table != domain.SourceTablePrimary {
		return
	}
	if err := p.sources.UpdateScrapedAt(ctx, payload.SourceID); err != nil {
		p.log.Warn("failed to update source scrape timestamp",
			logger.String("source_id", payload.SourceID),
			logger.Error(err),
		)
	}
}

// saveTrash records canonical as trash, tolerating races with other
// workers recording the same URL.
func (p *Pipeline) saveTrash(ctx context.Context, canonical string) {
	if err := p.processed.Save(ctx, canonical, domain.ProcessedStatusTrash, ""); err != nil &&
		!errors.Is(err, database.ErrAlreadyProcessed) {
		p.log.Warn("failed to record trash url",
			logger.String("url", canonical),
			logger.Error(err),
		)
	}
}
