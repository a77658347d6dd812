// Package llm drives the three language-model tasks of the pipeline
// through the Anthropic API: classifying articles into audience scopes,
// generating tiered summaries, and reading publication dates out of
// page markup.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/macsteckler/lightspeeed-scraper/internal/config"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

// Input bounds. Classification reads only the lead of the article; the
// summary prompts embed up to 4000 chars of markdown; date extraction
// reads up to 8 KB of clean HTML.
const (
	classifyTextLimit    = 1000
	summaryMarkdownLimit = 4000
	dateContentLimit     = 8 * 1024

	callTimeout = 60 * time.Second

	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
)

// System prompts per task.
const (
	classifySystem  = "You are a content classifier assistant that responds with valid JSON only."
	summarizeSystem = "You analyze news articles and provide structured summaries and metadata. Always respond with valid JSON."
	dateSystem      = "You are an expert at extracting publication dates from news articles. You analyze both metadata and content to find when an article was published."
)

// Request kinds recorded in telemetry.
const (
	kindClassify  = "classify"
	kindSummarize = "summarize"
	kindDate      = "date"
)

// noDateMarker is the answer the date prompt mandates when the page
// carries no publication date.
const noDateMarker = "Date not found"

// Summary is the summarizer's structured verdict on one article. Medium
// and long tiers are present only when the city prompt produced them.
type Summary struct {
	Title         string   `json:"title"`
	ShortSummary  string   `json:"short_summary"`
	MediumSummary string   `json:"medium_summary,omitempty"`
	LongSummary   string   `json:"long_summary,omitempty"`
	Topic         string   `json:"topic"`
	MainTopic     string   `json:"main_topic"`
	Subtopics     []string `json:"subtopics"`
	Score         Score    `json:"score"`
}

// Score is a 0-100 grade. The model sometimes quotes it, so it decodes
// from JSON numbers and numeric strings alike.
type Score int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("score %q is not numeric: %w", text, err)
	}
	*s = Score(int(f))
	return nil
}

// Client calls the Anthropic API with the pipeline's prompt templates.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
	prompts   Prompts
	tel       *telemetry.Provider
	log       logger.Logger
}

// New builds a Client from configuration. Extra request options are
// applied after the API key, letting tests point the client at a stub
// server.
func New(cfg config.LLMConfig, prompts Prompts, tel *telemetry.Provider, log logger.Logger, opts ...option.RequestOption) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)

	return &Client{
		api:       anthropic.NewClient(clientOpts...),
		model:     model,
		maxTokens: int64(maxTokens),
		prompts:   prompts,
		tel:       tel,
		log:       log,
	}
}

// Classify labels an article as city, global, industry, or trash. Any
// transport or parse failure collapses to trash: the pipeline drops the
// article instead of failing the job.
func (c *Client) Classify(ctx context.Context, title, text, pageURL string) domain.Classification {
	if pageURL == "" {
		pageURL = "URL not provided"
	}

	prompt := strings.NewReplacer(
		urlToken, pageURL,
		titleToken, title,
		textToken, truncate(text, classifyTextLimit),
	).Replace(c.prompts.Classifier)

	raw, err := c.complete(ctx, kindClassify, classifySystem, prompt)
	if err != nil {
		c.log.Warn("classification failed, labelling trash",
			logger.String("url", pageURL),
			logger.Error(err),
		)
		return domain.Trash()
	}

	var verdict domain.Classification
	if err := json.Unmarshal(extractJSON(raw), &verdict); err != nil {
		c.log.Warn("classifier reply is not valid JSON, labelling trash",
			logger.String("url", pageURL),
			logger.Error(err),
		)
		return domain.Trash()
	}

	normalized := verdict.Normalize()
	c.log.Debug("article classified",
		logger.String("url", pageURL),
		logger.String("label", normalized.Label),
	)
	return normalized
}

// Summarize runs the tier-appropriate summary prompt over the article.
// City articles get the three-tier city prompt; global and industry
// articles get the single-tier prompt. Trash has no summary prompt and
// returns an error.
func (c *Client) Summarize(ctx context.Context, classification domain.Classification, content *domain.ExtractedContent) (*Summary, error) {
	var template string
	switch classification.Label {
	case domain.LabelCity:
		template = c.prompts.CitySummary
	case domain.LabelGlobal, domain.LabelIndustry:
		template = c.prompts.StandardSummary
	default:
		return nil, fmt.Errorf("no summary prompt for label %q", classification.Label)
	}

	prompt := strings.NewReplacer(
		markdownToken, truncate(content.Markdown, summaryMarkdownLimit),
		metadataToken, formatMetadata(content.Metadata),
	).Replace(template)

	raw, err := c.complete(ctx, kindSummarize, summarizeSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(extractJSON(raw), &summary); err != nil {
		return nil, fmt.Errorf("summary reply is not valid JSON: %w", err)
	}
	return &summary, nil
}

// ExtractDate asks the model for the publication date hiding in page
// metadata and markup, returned exactly as found. Empty with a nil
// error means the page carries no date. Implements dates.AIExtractor.
func (c *Client) ExtractDate(ctx context.Context, metadata map[string]string, cleanHTML string) (string, error) {
	prompt := strings.NewReplacer(
		dateMetaToken, formatMetadata(metadata),
		dateBodyToken, truncate(cleanHTML, dateContentLimit),
	).Replace(c.prompts.DateExtraction)

	raw, err := c.complete(ctx, kindDate, dateSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("date extraction failed: %w", err)
	}

	answer := strings.Trim(strings.TrimSpace(raw), `"`)
	if answer == "" || strings.EqualFold(answer, noDateMarker) {
		return "", nil
	}
	return answer, nil
}

// complete sends one user prompt under a task system prompt and returns
// the concatenated text blocks of the reply.
func (c *Client) complete(ctx context.Context, kind, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		c.tel.RecordLLMRequest(kind, err)
		return "", fmt.Errorf("%s request failed: %w", kind, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		err := fmt.Errorf("%s request returned no text content", kind)
		c.tel.RecordLLMRequest(kind, err)
		return "", err
	}
	c.tel.RecordLLMRequest(kind, nil)

	c.log.Debug("llm request completed",
		logger.String("kind", kind),
		logger.Int("prompt_chars", len(prompt)),
		logger.Int("reply_chars", text.Len()),
		logger.Duration("duration", time.Since(start)),
	)
	return text.String(), nil
}

// extractJSON strips code fences and, when the remainder still is not
// valid JSON, cuts from the first '{' to the last '}'. Models wrap
// their JSON in prose and fences often enough that this is routine.
func extractJSON(raw string) []byte {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	if json.Valid([]byte(text)) {
		return []byte(text)
	}
	if start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}'); start >= 0 && end > start {
		return []byte(text[start : end+1])
	}
	return []byte(text)
}

// formatMetadata renders metadata as one "key: value" line per entry,
// sorted by key so prompts are deterministic.
func formatMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+metadata[k])
	}
	return strings.Join(lines, "\n")
}

// truncate clips s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
