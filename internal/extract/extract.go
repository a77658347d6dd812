// Package extract turns a URL into normalized article content. A
// headless-browser engine does the first attempt; when it fails or
// comes back empty the extractor falls through to a commercial
// extraction API whose keys are rationed by the keypool. Both engines
// produce the same ExtractedContent shape so downstream stages never
// care which one ran.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

// Engine budgets. Navigation is deliberately tight: slow pages go to
// the API engine instead of stalling the worker.
const (
	navTimeout     = 3 * time.Second
	settleDelay    = 1 * time.Second
	captureTimeout = 5 * time.Second
	linkNavTimeout = 10 * time.Second

	articleCallTimeout = 15 * time.Second
	listCallTimeout    = 30 * time.Second
)

// ErrNoContent is returned when an engine reaches the page but finds
// nothing worth keeping.
var ErrNoContent = errors.New("extract: no content recovered")

// Engine is one way of reading a page: the browser or the API.
type Engine interface {
	// Extract fetches pageURL and returns normalized content.
	Extract(ctx context.Context, pageURL string) (*domain.ExtractedContent, error)
	// CollectLinks returns candidate outbound links from pageURL.
	CollectLinks(ctx context.Context, pageURL string) ([]string, error)
}

// Extractor chains the primary browser engine with the secondary API
// engine and records fallbacks.
type Extractor struct {
	primary   Engine
	secondary Engine
	tel       *telemetry.Provider
	log       logger.Logger
}

// New builds an Extractor over the two engines. Either engine may be
// nil, in which case its slot is skipped.
func New(primary, secondary Engine, tel *telemetry.Provider, log logger.Logger) *Extractor {
	return &Extractor{primary: primary, secondary: secondary, tel: tel, log: log}
}

// Extract runs the primary engine and falls back to the secondary when
// the primary errors or returns an empty body. Both failing is an
// error carrying the last cause.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*domain.ExtractedContent, error) {
	var primaryErr error

	if e.primary != nil {
		content, err := e.primary.Extract(ctx, pageURL)
		if err == nil && content.HasBody() {
			return content, nil
		}
		if err == nil {
			err = ErrNoContent
		}
		primaryErr = err
		e.log.Warn("primary extraction failed, falling back",
			logger.String("url", pageURL),
			logger.Error(err),
		)
		e.tel.RecordExtractionFallback("article")
	}

	if e.secondary == nil {
		if primaryErr != nil {
			return nil, primaryErr
		}
		return nil, ErrNoContent
	}

	content, err := e.secondary.Extract(ctx, pageURL)
	if err != nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("both engines failed: primary: %v; secondary: %w", primaryErr, err)
		}
		return nil, err
	}
	if !content.HasBody() {
		return nil, ErrNoContent
	}

	return content, nil
}

// CollectLinks gathers candidate links from a listing page, preferring
// the browser and falling back to the API's list endpoint.
func (e *Extractor) CollectLinks(ctx context.Context, pageURL string) ([]string, error) {
	var primaryErr error

	if e.primary != nil {
		links, err := e.primary.CollectLinks(ctx, pageURL)
		if err == nil {
			return links, nil
		}
		primaryErr = err
		e.log.Warn("primary link collection failed, falling back",
			logger.String("url", pageURL),
			logger.Error(err),
		)
		e.tel.RecordExtractionFallback("links")
	}

	if e.secondary == nil {
		return nil, primaryErr
	}

	links, err := e.secondary.CollectLinks(ctx, pageURL)
	if err != nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("both engines failed: primary: %v; secondary: %w", primaryErr, err)
		}
		return nil, err
	}

	return links, nil
}
