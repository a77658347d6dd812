package pipeline

import (
	"context"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// runMultiSource fans a list of source references out into individual
// SOURCE jobs. Nothing is crawled inline; the enqueued jobs are claimed
// by workers like any other. links_found counts the references,
// articles_saved the jobs successfully enqueued.
func (p *Pipeline) runMultiSource(ctx context.Context, jobID int64, payload *domain.MultiSourcePayload) error {
	if err := p.jobs.UpdateCounters(ctx, jobID, domain.JobCounters{LinksFound: len(payload.Sources)}); err != nil {
		p.log.Warn("failed to update job counters",
			logger.Int64("job_id", jobID),
			logger.Error(err),
		)
	}

	if payload.DryRun {
		p.log.Info("dry run, not enqueueing source jobs",
			logger.Int64("job_id", jobID),
			logger.Int("sources", len(payload.Sources)),
		)
		return nil
	}

	enqueued := 0
	errors := 0

	for _, ref := range payload.Sources {
		source, err := p.sources.Get(ctx, ref.SourceTable, ref.SourceID)
		if err != nil {
			p.log.Warn("source lookup failed",
				logger.String("source_id", ref.SourceID),
				logger.String("source_table", ref.SourceTable),
				logger.Error(err),
			)
			errors++
			continue
		}

		address := source.Address()
		if address == "" {
			p.log.Warn("source has no URL",
				logger.String("source_id", ref.SourceID),
				logger.String("source_table", ref.SourceTable),
			)
			errors++
			continue
		}

		raw, err := domain.EncodePayload(domain.SourcePayload{
			URL:         address,
			SourceID:    ref.SourceID,
			SourceTable: ref.SourceTable,
			Limit:       ref.Limit,
		})
		if err != nil {
			p.log.Warn("failed to encode source payload",
				logger.String("source_id", ref.SourceID),
				logger.Error(err),
			)
			errors++
			continue
		}

		sourceJobID, err := p.jobs.Enqueue(ctx, domain.JobTypeSource, raw)
		if err != nil {
			p.log.Warn("failed to enqueue source job",
				logger.String("source_id", ref.SourceID),
				logger.Error(err),
			)
			errors++
			continue
		}

		p.log.Info("enqueued source job",
			logger.Int64("source_job_id", sourceJobID),
			logger.String("source_id", ref.SourceID),
		)
		enqueued++
	}

	if err := p.jobs.UpdateCounters(ctx, jobID, domain.JobCounters{ArticlesSaved: enqueued, Errors: errors}); err != nil {
		p.log.Warn("failed to update job counters",
			logger.Int64("job_id", jobID),
			logger.Error(err),
		)
	}

	p.log.Info("multi-source fan-out complete",
		logger.Int64("job_id", jobID),
		logger.Int("enqueued", enqueued),
		logger.Int("errors", errors),
	)
	return nil
}
