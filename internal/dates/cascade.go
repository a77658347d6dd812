package dates

import (
	"context"
	"strings"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// metadataFields is the ordered list of page metadata keys the
// algorithmic fallback inspects. Publication-time fields come before
// modification-time fields so an edit never masks the original date.
var metadataFields = []string{
	"article:published_time",
	"og:published_time",
	"date",
	"pubdate",
	"published",
	"publication_date",
	"datePublished",
	"article:modified_time",
	"og:updated_time",
	"last-modified",
	"modified",
}

// AIExtractor asks a language model to read a publication date out of
// page metadata and markup. Implemented by the llm package.
type AIExtractor interface {
	ExtractDate(ctx context.Context, metadata map[string]string, cleanHTML string) (string, error)
}

// Resolver runs the per-engine date cascade over extracted content.
// A nil AIExtractor disables the AI rungs; the algorithmic ones still
// run. Every rung that fails falls through to the next, and total
// failure yields a null date rather than an error: a missing date never
// sinks an article.
type Resolver struct {
	ai  AIExtractor
	log logger.Logger
	now func() time.Time
}

// NewResolver creates a Resolver backed by the given AI extractor.
func NewResolver(ai AIExtractor, log logger.Logger) *Resolver {
	return &Resolver{ai: ai, log: log, now: time.Now}
}

// Resolve returns the publication date for content plus the label of
// the cascade rung that produced it. Content extracted by the secondary
// API engine trusts the engine-supplied date first and uses AI as the
// fallback; browser-extracted content asks the AI first and falls back
// to scanning metadata fields in a fixed order.
func (r *Resolver) Resolve(ctx context.Context, content *domain.ExtractedContent) (*time.Time, string) {
	now := r.now()

	if content.Engine == domain.EngineAPI {
		if content.Date != nil {
			if d, ok := ParseInWindow(*content.Date, now); ok {
				return &d, domain.DateMethodAPIPrimary
			}
			r.log.Debug("engine-supplied date unusable",
				logger.String("raw", *content.Date),
			)
		}
		if d, ok := r.askAI(ctx, content, now); ok {
			return &d, domain.DateMethodAPIAIFallback
		}
		return r.failed(content)
	}

	if d, ok := r.askAI(ctx, content, now); ok {
		return &d, domain.DateMethodBrowserAIPrimary
	}
	if d, ok := fromMetadata(content.Metadata, now); ok {
		return &d, domain.DateMethodBrowserAlgorithmic
	}

	return r.failed(content)
}

func (r *Resolver) askAI(ctx context.Context, content *domain.ExtractedContent, now time.Time) (time.Time, bool) {
	if r.ai == nil {
		return time.Time{}, false
	}

	raw, err := r.ai.ExtractDate(ctx, content.Metadata, content.CleanHTML)
	if err != nil {
		r.log.Debug("ai date extraction failed", logger.Error(err))
		return time.Time{}, false
	}

	d, ok := ParseInWindow(raw, now)
	if !ok && raw != "" {
		r.log.Debug("ai date unusable", logger.String("raw", raw))
	}
	return d, ok
}

func (r *Resolver) failed(content *domain.ExtractedContent) (*time.Time, string) {
	r.log.Info("date cascade exhausted, article proceeds with null date",
		logger.String("title", content.Title),
		logger.String("engine", content.Engine),
	)
	return nil, domain.DateMethodFailed
}

// fromMetadata walks the known date-bearing metadata fields in priority
// order and returns the first parseable in-window value. Lookup is
// case-insensitive because sites disagree on key casing.
func fromMetadata(metadata map[string]string, now time.Time) (time.Time, bool) {
	if len(metadata) == 0 {
		return time.Time{}, false
	}

	for _, field := range metadataFields {
		raw, ok := lookupFold(metadata, field)
		if !ok {
			continue
		}
		if d, ok := ParseInWindow(raw, now); ok {
			return d, true
		}
	}

	return time.Time{}, false
}

func lookupFold(metadata map[string]string, field string) (string, bool) {
	if v, ok := metadata[field]; ok {
		return v, true
	}
	for k, v := range metadata {
		if strings.EqualFold(k, field) {
			return v, true
		}
	}
	return "", false
}
