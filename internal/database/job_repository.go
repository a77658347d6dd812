package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
)

// Job repository constants.
const (
	defaultJobListLimit = 50

	// jobSelectColumns lists columns for SELECT queries on scrape_jobs.
	jobSelectColumns = `id, job_type, payload, status, error_message,
		links_found, links_skipped, articles_saved, errors,
		created_at, updated_at`
)

// JobRepository handles database operations for the scrape job queue.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a queued job and returns its ID.
func (r *JobRepository) Enqueue(ctx context.Context, jobType string, payload domain.JSONBMap) (int64, error) {
	if !domain.ValidJobType(jobType) {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownJobType, jobType)
	}
	if payload == nil {
		payload = domain.JSONBMap{}
	}

	query := `
		INSERT INTO scrape_jobs (job_type, payload, status)
		VALUES ($1, $2, 'queued')
		RETURNING id
	`

	var id int64
	if err := r.db.GetContext(ctx, &id, query, jobType, payload); err != nil {
		return 0, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return id, nil
}

// Claim selects and locks the oldest queued job, marks it in_progress, and
// returns it. Returns ErrNoJob if the queue is empty. Concurrent workers
// never claim the same job: the row is locked with FOR UPDATE SKIP LOCKED
// until the status flip commits.
func (r *JobRepository) Claim(ctx context.Context) (*domain.Job, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	job, selectErr := claimSelectJob(ctx, tx)
	if selectErr != nil {
		return nil, selectErr
	}

	if updateErr := claimUpdateJobStatus(ctx, tx, job.ID); updateErr != nil {
		return nil, updateErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	job.Status = domain.JobStatusInProgress
	return job, nil
}

// claimSelectJob selects and locks the oldest queued job within a transaction.
func claimSelectJob(ctx context.Context, tx *sqlx.Tx) (*domain.Job, error) {
	query := `
		SELECT ` + jobSelectColumns + `
		FROM scrape_jobs
		WHERE status = 'queued'
		ORDER BY id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var job domain.Job
	err := tx.GetContext(ctx, &job, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJob
		}
		return nil, fmt.Errorf("failed to select claimable job: %w", err)
	}

	return &job, nil
}

// claimUpdateJobStatus flips a claimed job to in_progress within a transaction.
func claimUpdateJobStatus(ctx context.Context, tx *sqlx.Tx, id int64) error {
	query := `UPDATE scrape_jobs SET status = 'in_progress', updated_at = NOW() WHERE id = $1`

	_, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update claimed job status: %w", err)
	}

	return nil
}

// MarkDone marks a job as done.
func (r *JobRepository) MarkDone(ctx context.Context, id int64) error {
	query := `UPDATE scrape_jobs SET status = 'done', updated_at = NOW() WHERE id = $1`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: job %d", ErrNotFound, id))
}

// MarkError marks a job as failed with an error message.
func (r *JobRepository) MarkError(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE scrape_jobs
		SET status = 'error',
			error_message = $1,
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, message, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: job %d", ErrNotFound, id))
}

// UpdateCounters adds the given deltas to a job's progress counters. A zero
// delta is a no-op, so handlers can call it unconditionally. Counters are
// additive so that partial progress recorded before a crash survives.
func (r *JobRepository) UpdateCounters(ctx context.Context, id int64, delta domain.JobCounters) error {
	if delta.IsZero() {
		return nil
	}

	query := `
		UPDATE scrape_jobs
		SET links_found = links_found + $1,
			links_skipped = links_skipped + $2,
			articles_saved = articles_saved + $3,
			errors = errors + $4,
			updated_at = NOW()
		WHERE id = $5
	`

	result, execErr := r.db.ExecContext(ctx, query,
		delta.LinksFound, delta.LinksSkipped, delta.ArticlesSaved, delta.Errors, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: job %d", ErrNotFound, id))
}

// Get returns a job by ID. Returns ErrNotFound if it does not exist.
func (r *JobRepository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM scrape_jobs WHERE id = $1`

	var job domain.Job
	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List returns jobs ordered newest-first, optionally filtered by status.
func (r *JobRepository) List(ctx context.Context, status string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = defaultJobListLimit
	}

	var (
		query string
		args  []any
	)
	if status != "" {
		query = `SELECT ` + jobSelectColumns + ` FROM scrape_jobs WHERE status = $1 ORDER BY id DESC LIMIT $2`
		args = []any{status, limit}
	} else {
		query = `SELECT ` + jobSelectColumns + ` FROM scrape_jobs ORDER BY id DESC LIMIT $1`
		args = []any{limit}
	}

	var jobs []*domain.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.Job{}
	}
	return jobs, nil
}

// CancelIncomplete cancels every queued or in_progress job, recording the
// reason. Workers run this on boot (unless started with --resume-jobs) so
// that rows orphaned by a crash don't sit in_progress forever. Returns the
// number of jobs cancelled.
func (r *JobRepository) CancelIncomplete(ctx context.Context, reason string) (int64, error) {
	query := `
		UPDATE scrape_jobs
		SET status = 'cancelled',
			error_message = $1,
			updated_at = NOW()
		WHERE status IN ('queued', 'in_progress')
	`

	result, err := r.db.ExecContext(ctx, query, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel incomplete jobs: %w", err)
	}

	return result.RowsAffected()
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM scrape_jobs GROUP BY status`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query job counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan job count row: %w", scanErr)
		}
		counts[status] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate job counts: %w", rowsErr)
	}

	return counts, nil
}
