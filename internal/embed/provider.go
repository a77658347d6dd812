// Package embed turns saved articles into dense vectors and ships them
// to Elasticsearch. Embedding is best-effort: the article pipeline
// treats every failure here as a logged warning, never a job failure.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/config"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

const (
	providerTimeout = 30 * time.Second

	defaultModel = "text-embedding-3-small"
)

// Provider calls an OpenAI-compatible embeddings endpoint.
type Provider struct {
	url        string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	log        logger.Logger
}

// NewProvider builds a Provider from the embeddings configuration.
func NewProvider(cfg config.EmbeddingsConfig, log logger.Logger) *Provider {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: providerTimeout},
		log:        log,
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for one text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding request returned status %d: %s", resp.StatusCode, string(detail))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response carries no vector")
	}

	vector := parsed.Data[0].Embedding
	if p.dimensions > 0 && len(vector) != p.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, index expects %d", len(vector), p.dimensions)
	}
	return vector, nil
}
