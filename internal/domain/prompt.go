package domain

// Prompt names looked up in the prompts table at worker start. Each has
// a compiled-in default used when the row is absent.
const (
	PromptClassifier      = "classifier"
	PromptCitySummary     = "city_summary"
	PromptStandardSummary = "standard_summary"
	PromptDateExtraction  = "date_extraction"
)

// Prompt is a row in the prompts table.
type Prompt struct {
	Name string `db:"name" json:"name"`
	Text string `db:"text" json:"text"`
}
