package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors returned by the repositories. Callers match with
// errors.Is.
var (
	// ErrNoJob is returned by Claim when the queue holds no queued rows.
	ErrNoJob = errors.New("no queued job available")
	// ErrNotFound is returned when a row lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyProcessed is returned when an insert hits a unique
	// constraint: another worker already recorded the same URL.
	ErrAlreadyProcessed = errors.New("url already processed")
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a PostgreSQL unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// execRequireRows checks an ExecContext result and returns notFoundErr
// when no rows were affected.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
