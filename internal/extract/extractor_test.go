package extract_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/extract"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

// getTestProvider shares one Provider across the test binary because
// metric registration on the default registry is once-only.
func getTestProvider() *telemetry.Provider {
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

type stubEngine struct {
	content *domain.ExtractedContent
	links   []string
	err     error
	calls   int
}

func (s *stubEngine) Extract(ctx context.Context, pageURL string) (*domain.ExtractedContent, error) {
	s.calls++
	return s.content, s.err
}

func (s *stubEngine) CollectLinks(ctx context.Context, pageURL string) ([]string, error) {
	s.calls++
	return s.links, s.err
}

func body(text string) *domain.ExtractedContent {
	return &domain.ExtractedContent{Title: "t", Text: text, Engine: domain.EngineBrowser}
}

func TestExtractPrimaryWins(t *testing.T) {
	primary := &stubEngine{content: body("primary text")}
	secondary := &stubEngine{content: body("secondary text")}
	e := extract.New(primary, secondary, getTestProvider(), logger.NewNop())

	content, err := e.Extract(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "primary text", content.Text)
	assert.Zero(t, secondary.calls)
}

func TestExtractFallsBackOnPrimaryError(t *testing.T) {
	primary := &stubEngine{err: errors.New("navigation timeout")}
	secondary := &stubEngine{content: body("secondary text")}
	e := extract.New(primary, secondary, getTestProvider(), logger.NewNop())

	content, err := e.Extract(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "secondary text", content.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestExtractFallsBackOnEmptyBody(t *testing.T) {
	primary := &stubEngine{content: &domain.ExtractedContent{Title: "only a title"}}
	secondary := &stubEngine{content: body("secondary text")}
	e := extract.New(primary, secondary, getTestProvider(), logger.NewNop())

	content, err := e.Extract(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "secondary text", content.Text)
}

func TestExtractBothFail(t *testing.T) {
	primary := &stubEngine{err: errors.New("navigation timeout")}
	secondary := &stubEngine{err: extract.ErrRateLimited}
	e := extract.New(primary, secondary, getTestProvider(), logger.NewNop())

	_, err := e.Extract(context.Background(), "https://example.com/a")
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrRateLimited)
	assert.Contains(t, err.Error(), "navigation timeout")
}

func TestExtractSecondaryEmptyBodyIsError(t *testing.T) {
	primary := &stubEngine{err: errors.New("boom")}
	secondary := &stubEngine{content: &domain.ExtractedContent{Title: "no body"}}
	e := extract.New(primary, secondary, getTestProvider(), logger.NewNop())

	_, err := e.Extract(context.Background(), "https://example.com/a")
	assert.ErrorIs(t, err, extract.ErrNoContent)
}

func TestExtractNoSecondaryPropagatesPrimaryError(t *testing.T) {
	navErr := errors.New("navigation timeout")
	primary := &stubEngine{err: navErr}
	e := extract.New(primary, nil, getTestProvider(), logger.NewNop())

	_, err := e.Extract(context.Background(), "https://example.com/a")
	assert.ErrorIs(t, err, navErr)
}

func TestCollectLinksPrimaryWins(t *testing.T) {
	primary := &stubEngine{links: []string{"https://example.com/1"}}
	secondary := &stubEngine{links: []string{"https://example.com/2"}}
	e := extract.New(primary, secondary, getTestProvider(), logger.NewNop())

	links, err := e.CollectLinks(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/1"}, links)
	assert.Zero(t, secondary.calls)
}

func TestCollectLinksFallsBack(t *testing.T) {
	primary := &stubEngine{err: errors.New("browser crashed")}
	secondary := &stubEngine{links: []string{"https://example.com/2"}}
	e := extract.New(primary, secondary, getTestProvider(), logger.NewNop())

	links, err := e.CollectLinks(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/2"}, links)
}
