package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/macsteckler/lightspeeed-scraper/internal/config"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/retry"
)

const (
	pingTimeout = 5 * time.Second

	defaultIndex      = "news_article_vectors"
	defaultDimensions = 1536
)

// Document is one vector row in the articles index.
type Document struct {
	ArticleID   string    `json:"article_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	DatePosted  *string   `json:"date_posted"`
	Location    string    `json:"location"`
	Topics      []string  `json:"topics"`
	LastUpdated string    `json:"last_updated"`
	Embedding   []float32 `json:"embedding"`
}

// Sink writes vector documents to an Elasticsearch dense_vector index.
type Sink struct {
	client     *es.Client
	index      string
	dimensions int
	log        logger.Logger
}

// NewSink connects to Elasticsearch, verifies the connection with
// retries, and makes sure the vector index exists.
func NewSink(ctx context.Context, cfg config.EmbeddingsConfig, log logger.Logger) (*Sink, error) {
	esCfg := es.Config{
		Addresses: []string{normalizeURL(cfg.Elasticsearch.URL)},
	}
	if cfg.Elasticsearch.APIKey != "" {
		esCfg.APIKey = cfg.Elasticsearch.APIKey
	} else if cfg.Elasticsearch.Username != "" && cfg.Elasticsearch.Password != "" {
		esCfg.Username = cfg.Elasticsearch.Username
		esCfg.Password = cfg.Elasticsearch.Password
	}

	client, err := es.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	sink := &Sink{
		client:     client,
		index:      cfg.Index,
		dimensions: cfg.Dimensions,
		log:        log,
	}
	if sink.index == "" {
		sink.index = defaultIndex
	}
	if sink.dimensions <= 0 {
		sink.dimensions = defaultDimensions
	}

	if err := retry.Retry(ctx, retry.DefaultConfig(), func() error {
		return sink.ping(ctx)
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	if err := sink.ensureIndex(ctx); err != nil {
		return nil, err
	}

	log.Info("vector sink ready",
		logger.String("index", sink.index),
		logger.Int("dimensions", sink.dimensions),
	)
	return sink, nil
}

// Upsert writes one document under the given id, replacing any previous
// version.
func (s *Sink) Upsert(ctx context.Context, docID string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal vector document: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(docID),
	)
	if err != nil {
		return fmt.Errorf("failed to index vector document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing vector document: %s", res.String())
	}
	return nil
}

func (s *Sink) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	res, err := s.client.Ping(s.client.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("ping returned error: %s", res.Status())
	}
	return nil
}

// ensureIndex creates the dense_vector index when it does not exist.
// Re-running against an existing index is a no-op, so every worker can
// call it at startup.
func (s *Sink) ensureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists(
		[]string{s.index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		if res.IsError() {
			return fmt.Errorf("error checking index existence: %s", res.String())
		}
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"article_id":   map[string]any{"type": "keyword"},
				"url":          map[string]any{"type": "keyword"},
				"title":        map[string]any{"type": "text"},
				"summary":      map[string]any{"type": "text"},
				"date_posted":  map[string]any{"type": "date"},
				"location":     map[string]any{"type": "keyword"},
				"topics":       map[string]any{"type": "keyword"},
				"last_updated": map[string]any{"type": "date"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       s.dimensions,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	createRes, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		detail, _ := io.ReadAll(createRes.Body)
		// Another worker may have created it between the exists check
		// and now.
		if strings.Contains(string(detail), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("error creating index: %s", string(detail))
	}

	s.log.Info("created vector index", logger.String("index", s.index))
	return nil
}

func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}
