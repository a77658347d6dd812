package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// batchSourceLimit caps how many links each source contributes during a
// batch run. Batches favor breadth across sources over depth per source.
const batchSourceLimit = 15

// runBatch selects a slice of the source table and crawls each source
// inline under a concurrency bound. links_found counts selected
// sources; articles_saved counts sources completed, not articles, which
// keeps batch counters comparable across runs regardless of how
// productive each source was.
func (p *Pipeline) runBatch(ctx context.Context, jobID int64, payload *domain.BatchPayload) error {
	sources, err := p.sources.SelectForBatch(ctx, payload.BatchSize, payload.Query)
	if err != nil {
		return fmt.Errorf("failed to select sources for batch: %w", err)
	}
	p.log.Info("selected sources for batch",
		logger.Int64("job_id", jobID),
		logger.Int("count", len(sources)),
		logger.Bool("dry_run", payload.DryRun),
	)

	if err := p.jobs.UpdateCounters(ctx, jobID, domain.JobCounters{LinksFound: len(sources)}); err != nil {
		p.log.Warn("failed to update job counters",
			logger.Int64("job_id", jobID),
			logger.Error(err),
		)
	}

	if payload.DryRun {
		return nil
	}

	sem := make(chan struct{}, p.batchConcurrency)
	var wg sync.WaitGroup

	for _, source := range sources {
		wg.Add(1)
		go func(source *domain.Source) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			delta := p.crawlBatchSource(ctx, source)
			if err := p.jobs.UpdateCounters(ctx, jobID, delta); err != nil {
				p.log.Warn("failed to update job counters",
					logger.Int64("job_id", jobID),
					logger.Error(err),
				)
			}
		}(source)
	}
	wg.Wait()

	return nil
}

// crawlBatchSource runs the source pipeline for one batch member and
// reduces the outcome to a single counter tick: one source completed or
// one error. The crawl's own per-link counters are not attributed to
// the batch job.
func (p *Pipeline) crawlBatchSource(ctx context.Context, source *domain.Source) domain.JobCounters {
	payload := &domain.SourcePayload{
		SourceID:    source.ID,
		SourceTable: domain.SourceTablePrimary,
		URL:         source.Address(),
		Limit:       batchSourceLimit,
	}

	if _, err := p.runSource(ctx, payload); err != nil {
		p.log.Warn("batch source failed",
			logger.String("source_id", source.ID),
			logger.Error(err),
		)
		return domain.JobCounters{Errors: 1}
	}
	return domain.JobCounters{ArticlesSaved: 1}
}
