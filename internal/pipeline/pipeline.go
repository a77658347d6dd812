// Package pipeline implements the four job handlers behind the queue:
// single articles, source crawls, scheduled batches over the source
// table, and multi-source fan-out. Handlers return an error only when
// the job as a whole failed; per-link trouble inside a source crawl is
// absorbed into the job's counters instead.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/llm"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

// JobStore is the slice of the job queue the handlers use: enqueueing
// child jobs, finishing inline runs, and bumping progress counters.
type JobStore interface {
	Enqueue(ctx context.Context, jobType string, payload domain.JSONBMap) (int64, error)
	MarkDone(ctx context.Context, id int64) error
	UpdateCounters(ctx context.Context, id int64, delta domain.JobCounters) error
}

// ArticleStore persists finished articles.
type ArticleStore interface {
	Save(ctx context.Context, article *domain.Article) (int64, error)
}

// ProcessedStore is the canonical-URL dedup registry.
type ProcessedStore interface {
	Check(ctx context.Context, url string) (string, error)
	Save(ctx context.Context, url, status, city string) error
}

// SourceStore reads and stamps the source tables.
type SourceStore interface {
	Get(ctx context.Context, table, id string) (*domain.Source, error)
	SelectForBatch(ctx context.Context, batchSize int, query string) ([]*domain.Source, error)
	UpdateScrapedAt(ctx context.Context, id string) error
}

// Extractor fetches page content and candidate links. Satisfied by
// *extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (*domain.ExtractedContent, error)
	CollectLinks(ctx context.Context, pageURL string) ([]string, error)
}

// LLM classifies and summarizes articles. Satisfied by *llm.Client.
type LLM interface {
	Classify(ctx context.Context, title, text, pageURL string) domain.Classification
	Summarize(ctx context.Context, classification domain.Classification, content *domain.ExtractedContent) (*llm.Summary, error)
}

// DateResolver runs the publication-date cascade. Satisfied by
// *dates.Resolver.
type DateResolver interface {
	Resolve(ctx context.Context, content *domain.ExtractedContent) (*time.Time, string)
}

// Embedder vectorizes saved articles. Satisfied by *embed.Service.
type Embedder interface {
	EmbedArticle(ctx context.Context, article *domain.Article) error
}

// Deps carries the collaborators a Pipeline needs. Embedder may be nil
// when embeddings are disabled.
type Deps struct {
	Jobs      JobStore
	Articles  ArticleStore
	Processed ProcessedStore
	Sources   SourceStore
	Extractor Extractor
	LLM       LLM
	Dates     DateResolver
	Embedder  Embedder
	Telemetry *telemetry.Provider
	Log       logger.Logger

	// BatchConcurrency bounds how many sources one BATCH job crawls in
	// parallel. Zero falls back to a single source at a time.
	BatchConcurrency int
}

// Pipeline dispatches claimed jobs to their handlers.
type Pipeline struct {
	jobs      JobStore
	articles  ArticleStore
	processed ProcessedStore
	sources   SourceStore
	extractor Extractor
	llm       LLM
	dates     DateResolver
	embedder  Embedder
	tel       *telemetry.Provider
	log       logger.Logger

	batchConcurrency int
}

// New builds a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	concurrency := deps.BatchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		jobs:             deps.Jobs,
		articles:         deps.Articles,
		processed:        deps.Processed,
		sources:          deps.Sources,
		extractor:        deps.Extractor,
		llm:              deps.LLM,
		dates:            deps.Dates,
		embedder:         deps.Embedder,
		tel:              deps.Telemetry,
		log:              deps.Log,
		batchConcurrency: concurrency,
	}
}

// BatchConcurrencyFor derives the parallel-source bound for BATCH jobs
// from the extraction key pool: one slot per key minus headroom for the
// inline article fetches, capped at eight, never below one.
func BatchConcurrencyFor(numKeys int) int {
	c := numKeys - 1
	if c > 8 {
		c = 8
	}
	if c < 1 {
		c = 1
	}
	return c
}

// Dispatch routes one claimed job to its handler. A returned error
// means the job failed; the worker records it on the row.
func (p *Pipeline) Dispatch(ctx context.Context, job *domain.Job) error {
	switch job.JobType {
	case domain.JobTypeArticle:
		payload, err := domain.DecodeArticlePayload(job.Payload)
		if err != nil {
			return err
		}
		return p.runArticle(ctx, payload)

	case domain.JobTypeSource:
		payload, err := domain.DecodeSourcePayload(job.Payload)
		if err != nil {
			return err
		}
		counters, err := p.runSource(ctx, payload)
		if cErr := p.jobs.UpdateCounters(ctx, job.ID, counters); cErr != nil {
			p.log.Warn("failed to update job counters",
				logger.Int64("job_id", job.ID),
				logger.Error(cErr),
			)
		}
		return err

	case domain.JobTypeBatch:
		payload, err := domain.DecodeBatchPayload(job.Payload)
		if err != nil {
			return err
		}
		return p.runBatch(ctx, job.ID, payload)

	case domain.JobTypeMultiSource:
		payload, err := domain.DecodeMultiSourcePayload(job.Payload)
		if err != nil {
			return err
		}
		return p.runMultiSource(ctx, job.ID, payload)

	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
}
