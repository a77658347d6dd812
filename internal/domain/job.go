// Package domain holds the shared types of the scraping pipeline: queue
// jobs and their payloads, articles, sources, processed URLs, and the
// classification scope rules that tie them together.
package domain

import "time"

// Job type constants, persisted lowercase in scrape_jobs.job_type.
const (
	JobTypeArticle     = "article"
	JobTypeSource      = "source"
	JobTypeBatch       = "batch"
	JobTypeMultiSource = "multi_source"
)

// Job status constants.
const (
	JobStatusQueued     = "queued"
	JobStatusInProgress = "in_progress"
	JobStatusDone       = "done"
	JobStatusError      = "error"
	JobStatusCancelled  = "cancelled"
)

// Job represents a row in the scrape_jobs queue.
type Job struct {
	ID           int64    `db:"id"            json:"id"`
	JobType      string   `db:"job_type"      json:"job_type"`
	Payload      JSONBMap `db:"payload"       json:"payload"`
	Status       string   `db:"status"        json:"status"`
	ErrorMessage *string  `db:"error_message" json:"error_message,omitempty"`

	// Live progress counters. Only ever incremented while the job runs.
	LinksFound    int `db:"links_found"    json:"links_found"`
	LinksSkipped  int `db:"links_skipped"  json:"links_skipped"`
	ArticlesSaved int `db:"articles_saved" json:"articles_saved"`
	Errors        int `db:"errors"         json:"errors"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// JobCounters is an additive delta applied to a job's progress counters.
type JobCounters struct {
	LinksFound    int
	LinksSkipped  int
	ArticlesSaved int
	Errors        int
}

// IsZero reports whether applying the delta would change nothing.
func (c JobCounters) IsZero() bool {
	return c.LinksFound == 0 && c.LinksSkipped == 0 && c.ArticlesSaved == 0 && c.Errors == 0
}

// ValidJobType reports whether t names a known job type.
func ValidJobType(t string) bool {
	switch t {
	case JobTypeArticle, JobTypeSource, JobTypeBatch, JobTypeMultiSource:
		return true
	}
	return false
}

// ValidJobStatus reports whether s names a known job status.
func ValidJobStatus(s string) bool {
	switch s {
	case JobStatusQueued, JobStatusInProgress, JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// TerminalJobStatus reports whether s is a final state.
func TerminalJobStatus(s string) bool {
	switch s {
	case JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}
