package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PromptRepository handles database operations for LLM prompt overrides.
type PromptRepository struct {
	db *sqlx.DB
}

// NewPromptRepository creates a new prompt repository.
func NewPromptRepository(db *sqlx.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// Get returns the prompt text stored under the given name. Returns
// ErrNotFound when no override exists; callers fall back to the
// compiled-in prompt.
func (r *PromptRepository) Get(ctx context.Context, name string) (string, error) {
	query := `SELECT text FROM prompts WHERE name = $1`

	var text string
	err := r.db.GetContext(ctx, &text, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: prompt %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to get prompt: %w", err)
	}

	return text, nil
}
