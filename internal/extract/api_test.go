package extract_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/extract"
	"github.com/macsteckler/lightspeeed-scraper/internal/keypool"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

func newAPIEngine(t *testing.T, handler http.HandlerFunc) (*extract.APIEngine, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	keys, err := keypool.New([]string{"test-key-1", "test-key-2"})
	require.NoError(t, err)

	return extract.NewAPIEngine(srv.URL, keys, logger.NewNop()), srv
}

func TestAPIExtract(t *testing.T) {
	var gotPath, gotToken, gotURL string

	engine, _ := newAPIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		gotURL = r.URL.Query().Get("url")

		json.NewEncoder(w).Encode(map[string]any{
			"objects": []map[string]any{{
				"title": "Council Passes Budget",
				"text":  "The council passed the budget on Tuesday.",
				"html":  "<p>The council passed the budget on Tuesday.</p>",
				"date":  "Tue, 10 Jun 2025 12:00:00 GMT",
			}},
		})
	})

	content, err := engine.Extract(context.Background(), "https://news.example.com/budget")
	require.NoError(t, err)

	assert.Equal(t, "/v3/article", gotPath)
	assert.Contains(t, []string{"test-key-1", "test-key-2"}, gotToken)
	assert.Equal(t, "https://news.example.com/budget", gotURL)

	assert.Equal(t, "Council Passes Budget", content.Title)
	assert.Equal(t, "The council passed the budget on Tuesday.", content.Text)
	assert.Equal(t, domain.EngineAPI, content.Engine)
	require.NotNil(t, content.Date)
	assert.Equal(t, "Tue, 10 Jun 2025 12:00:00 GMT", *content.Date)
	assert.NotEmpty(t, content.Markdown)
}

func TestAPIExtractRateLimited(t *testing.T) {
	engine, _ := newAPIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := engine.Extract(context.Background(), "https://news.example.com/a")
	assert.ErrorIs(t, err, extract.ErrRateLimited)
}

func TestAPIExtractKeyRejected(t *testing.T) {
	engine, _ := newAPIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := engine.Extract(context.Background(), "https://news.example.com/a")
	assert.ErrorIs(t, err, extract.ErrKeyRejected)
}

func TestAPIExtractNoObjects(t *testing.T) {
	engine, _ := newAPIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"objects":   []any{},
			"error":     "Could not parse page",
			"errorCode": 500,
		})
	})

	_, err := engine.Extract(context.Background(), "https://news.example.com/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not parse page")
}

func TestAPIExtractEmptyResponseIsNoContent(t *testing.T) {
	engine, _ := newAPIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"objects": []any{}})
	})

	_, err := engine.Extract(context.Background(), "https://news.example.com/a")
	assert.ErrorIs(t, err, extract.ErrNoContent)
}

func TestAPICollectLinks(t *testing.T) {
	var gotPath string

	engine, _ := newAPIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"objects": []map[string]any{
				{"link": "https://news.example.com/story-1"},
				{"link": "https://news.example.com/story-2"},
				{"link": "https://news.example.com/story-1"},
				{"link": ""},
			},
			"nextPages": []string{"https://news.example.com/page/2"},
		})
	})

	links, err := engine.CollectLinks(context.Background(), "https://news.example.com")
	require.NoError(t, err)

	assert.Equal(t, "/v3/list", gotPath)
	assert.Equal(t, []string{
		"https://news.example.com/story-1",
		"https://news.example.com/story-2",
		"https://news.example.com/page/2",
	}, links)
}

func TestAPICollectLinksError(t *testing.T) {
	engine, _ := newAPIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := engine.CollectLinks(context.Background(), "https://news.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
