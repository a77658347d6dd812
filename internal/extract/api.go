package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/keypool"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// Typed API failures. Rate limiting means the upstream quota tracker
// disagrees with ours; a rejected key usually means it expired.
var (
	ErrRateLimited = errors.New("extract: api quota exceeded")
	ErrKeyRejected = errors.New("extract: api key rejected")
)

// articleResponse is the subset of the extraction API's article payload
// the pipeline consumes.
type articleResponse struct {
	Objects []struct {
		Title string `json:"title"`
		Text  string `json:"text"`
		HTML  string `json:"html"`
		Date  string `json:"date"`
	} `json:"objects"`
	Error     string `json:"error"`
	ErrorCode int    `json:"errorCode"`
}

// listResponse is the list endpoint's payload: one object per
// discovered item plus optional pagination URLs.
type listResponse struct {
	Objects []struct {
		Link string `json:"link"`
	} `json:"objects"`
	NextPages []string `json:"nextPages"`
	Error     string   `json:"error"`
	ErrorCode int      `json:"errorCode"`
}

// APIEngine is the secondary extraction path: a commercial article
// extraction API called with keys rationed by the pool.
type APIEngine struct {
	baseURL string
	keys    *keypool.Pool
	client  *http.Client
	log     logger.Logger
}

// NewAPIEngine builds the engine against baseURL (no trailing slash
// needed). Call timeouts are applied per request, not on the client.
func NewAPIEngine(baseURL string, keys *keypool.Pool, log logger.Logger) *APIEngine {
	return &APIEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		keys:    keys,
		client:  &http.Client{},
		log:     log,
	}
}

// Extract calls the article endpoint and maps the first object into
// ExtractedContent. The engine-reported date rides along for the date
// cascade.
func (a *APIEngine) Extract(ctx context.Context, pageURL string) (*domain.ExtractedContent, error) {
	key, err := a.keys.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire api key: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, articleCallTimeout)
	defer cancel()

	var payload articleResponse
	if err := a.call(callCtx, "/v3/article", key, pageURL, &payload); err != nil {
		return nil, err
	}

	if len(payload.Objects) == 0 {
		if payload.Error != "" {
			return nil, fmt.Errorf("extract: api error %d: %s", payload.ErrorCode, payload.Error)
		}
		return nil, ErrNoContent
	}

	obj := payload.Objects[0]
	content := &domain.ExtractedContent{
		Title:     obj.Title,
		Text:      obj.Text,
		CleanHTML: obj.HTML,
		Metadata:  map[string]string{},
		Engine:    domain.EngineAPI,
	}
	if obj.Date != "" {
		date := obj.Date
		content.Date = &date
	}
	if obj.HTML != "" {
		if markdown, err := toMarkdown(obj.HTML, pageURL); err == nil {
			content.Markdown = markdown
		}
	}

	return content, nil
}

// CollectLinks calls the list endpoint and returns the discovered item
// links plus any pagination URLs, deduplicated in response order.
func (a *APIEngine) CollectLinks(ctx context.Context, pageURL string) ([]string, error) {
	key, err := a.keys.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire api key: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, listCallTimeout)
	defer cancel()

	var payload listResponse
	if err := a.call(callCtx, "/v3/list", key, pageURL, &payload); err != nil {
		return nil, err
	}

	if len(payload.Objects) == 0 && payload.Error != "" {
		return nil, fmt.Errorf("extract: api error %d: %s", payload.ErrorCode, payload.Error)
	}

	hrefs := make([]string, 0, len(payload.Objects)+len(payload.NextPages))
	for _, obj := range payload.Objects {
		if obj.Link != "" {
			hrefs = append(hrefs, obj.Link)
		}
	}
	hrefs = append(hrefs, payload.NextPages...)

	links := filterLinks(hrefs)
	a.log.Debug("api collected links",
		logger.String("url", pageURL),
		logger.Int("count", len(links)),
	)

	return links, nil
}

// call performs one GET against the API and decodes the JSON body.
// 429 and 403 map to their typed errors so callers can tell quota
// trouble from a dead key.
func (a *APIEngine) call(ctx context.Context, path, key, pageURL string, out any) error {
	endpoint := fmt.Sprintf("%s%s?token=%s&url=%s",
		a.baseURL, path, url.QueryEscape(key), url.QueryEscape(pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build api request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		a.log.Warn("api key over quota", logger.String("key_prefix", keyPrefix(key)))
		return ErrRateLimited
	case http.StatusForbidden:
		a.log.Warn("api key forbidden", logger.String("key_prefix", keyPrefix(key)))
		return ErrKeyRejected
	default:
		return fmt.Errorf("extract: api status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}

	return nil
}

// keyPrefix returns a loggable fragment of an API key.
func keyPrefix(key string) string {
	if len(key) <= 5 {
		return key
	}
	return key[:5]
}
