package api

// ScrapeArticleRequest is the POST /api/v1/scrape-article body.
type ScrapeArticleRequest struct {
	URL      string `json:"url" binding:"required"`
	SourceID string `json:"source_id"`
}

// ScrapeSourceRequest is the POST /api/v1/scrape-source body.
type ScrapeSourceRequest struct {
	URL         string `json:"url" binding:"required"`
	SourceID    string `json:"source_id"`
	SourceTable string `json:"source_table"`
	Limit       int    `json:"limit"`
}

// ProcessSourcesRequest is the POST /api/v1/process-sources body.
type ProcessSourcesRequest struct {
	BatchSize int    `json:"batch_size"`
	Query     string `json:"query"`
	DryRun    bool   `json:"dry_run"`
}

// SourceRefRequest names one source in a multi-source request.
type SourceRefRequest struct {
	SourceID    string `json:"source_id" binding:"required"`
	SourceTable string `json:"source_table" binding:"required"`
	Limit       int    `json:"limit"`
}

// ScrapeMultipleSourcesRequest is the POST /api/v1/scrape-multiple-sources
// body.
type ScrapeMultipleSourcesRequest struct {
	Sources []SourceRefRequest `json:"sources" binding:"required"`
	DryRun  bool               `json:"dry_run"`
}

// EnqueueResponse acknowledges an accepted job.
type EnqueueResponse struct {
	JobID int64 `json:"job_id"`
}

// ErrorResponse is the body of every 4xx/5xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in ErrorResponse.Code.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeInvalidJobID = "INVALID_JOB_ID"
	codeNotFound     = "NOT_FOUND"
	codeInternal     = "INTERNAL_ERROR"
)
