package telemetry_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

// promauto registers on the global registry, so the provider is built
// once for the whole test run.
var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

func getTestProvider(t *testing.T) *telemetry.Provider {
	t.Helper()
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

func TestNewProvider(t *testing.T) {
	p := getTestProvider(t)
	require.NotNil(t, p)
	require.NotNil(t, p.Metrics)
	assert.NotNil(t, p.Handler())
}

func TestRecordJob(t *testing.T) {
	p := getTestProvider(t)

	p.RecordJob("article", "done", 2*time.Second)
	p.RecordJob("source", "error", 30*time.Second)
	p.SetQueueDepth(7)
}

func TestRecordPipelineCounters(t *testing.T) {
	p := getTestProvider(t)

	p.RecordArticlesSaved(3)
	p.RecordArticlesSaved(0)
	p.RecordLinksSkipped(12)
	p.RecordExtractionFallback("article")
	p.RecordExtractionFallback("links")
}

func TestRecordExternalCalls(t *testing.T) {
	p := getTestProvider(t)

	p.RecordLLMRequest("classify", nil)
	p.RecordLLMRequest("summarize", errors.New("boom"))
	p.RecordEmbedding(nil)
	p.RecordEmbedding(errors.New("down"))
}

func TestRecordHTTPRequest(t *testing.T) {
	p := getTestProvider(t)

	p.RecordHTTPRequest("POST", "/api/v1/scrape-article", 202, 5*time.Millisecond)
	p.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
}
