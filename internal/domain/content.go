package domain

// Extraction engine labels recorded alongside extracted content.
const (
	EngineBrowser = "browser"
	EngineAPI     = "api"
)

// Date extraction method labels. "failed" means the cascade exhausted
// every strategy; the article still proceeds with a null date.
const (
	DateMethodAPIPrimary         = "diffbot_primary"
	DateMethodAPIAIFallback      = "diffbot_ai_fallback"
	DateMethodBrowserAIPrimary   = "browser_ai_primary"
	DateMethodBrowserAlgorithmic = "browser_algorithmic_fallback"
	DateMethodFailed             = "failed"
)

// ExtractedContent is everything the extractor recovers from one page.
// A SOURCE job embeds it into the ARTICLE payloads it enqueues so the
// article pipeline can skip a second fetch.
type ExtractedContent struct {
	Title      string            `mapstructure:"title"       json:"title"`
	Text       string            `mapstructure:"text"        json:"text"`
	Markdown   string            `mapstructure:"markdown"    json:"markdown,omitempty"`
	CleanHTML  string            `mapstructure:"clean_html"  json:"clean_html,omitempty"`
	Metadata   map[string]string `mapstructure:"metadata"    json:"metadata,omitempty"`
	Date       *string           `mapstructure:"date"        json:"date,omitempty"`
	DateMethod string            `mapstructure:"date_extraction_method" json:"date_extraction_method,omitempty"`
	Engine     string            `mapstructure:"scraper_type"           json:"scraper_type,omitempty"`
}

// HasBody reports whether the content carries enough text to be worth
// classifying and summarizing.
func (c *ExtractedContent) HasBody() bool {
	return c != nil && c.Text != ""
}
