package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations holds the idempotent schema statements, executed in order
// on every worker and server start and by the migrate subcommand.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS scrape_jobs (
		id             BIGSERIAL PRIMARY KEY,
		job_type       TEXT NOT NULL,
		payload        JSONB NOT NULL DEFAULT '{}'::jsonb,
		status         TEXT NOT NULL DEFAULT 'queued',
		error_message  TEXT,
		links_found    INTEGER NOT NULL DEFAULT 0,
		links_skipped  INTEGER NOT NULL DEFAULT 0,
		articles_saved INTEGER NOT NULL DEFAULT 0,
		errors         INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_status_id
		ON scrape_jobs (status, id)`,

	`CREATE TABLE IF NOT EXISTS news_articles (
		id             BIGSERIAL PRIMARY KEY,
		url            TEXT NOT NULL,
		url_canonical  TEXT NOT NULL,
		date           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		title          TEXT,
		summary        TEXT,
		summary_medium TEXT,
		summary_long   TEXT,
		topic          TEXT,
		main_topic     TEXT,
		topic_2        TEXT,
		topic_3        TEXT,
		grade          INTEGER NOT NULL DEFAULT 0,
		date_posted    TIMESTAMPTZ,
		is_embedded    BOOLEAN NOT NULL DEFAULT FALSE,
		vector_id      TEXT,
		full_content   TEXT,
		meta_data      JSONB,
		city           TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_news_articles_url_canonical
		ON news_articles (url_canonical)`,

	`CREATE TABLE IF NOT EXISTS processed_news_urls (
		url               TEXT PRIMARY KEY,
		city              TEXT NOT NULL DEFAULT 'unknown',
		scrape_date       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_news           BOOLEAN NOT NULL DEFAULT FALSE,
		processing_status TEXT NOT NULL DEFAULT 'pending'
	)`,

	`CREATE TABLE IF NOT EXISTS news_sources (
		id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name               TEXT,
		url                TEXT,
		source_url         TEXT,
		has_been_processed BOOLEAN NOT NULL DEFAULT FALSE,
		verified           BOOLEAN NOT NULL DEFAULT FALSE,
		last_scraped_at    TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_sources_last_scraped
		ON news_sources (last_scraped_at ASC NULLS FIRST)`,

	// City sources share the lookup columns with news_sources but are
	// never selected for batches, so the batch bookkeeping columns are
	// absent here.
	`CREATE TABLE IF NOT EXISTS city_sources (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name       TEXT,
		url        TEXT,
		source_url TEXT,
		city       TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS prompts (
		name TEXT PRIMARY KEY,
		text TEXT NOT NULL
	)`,
}

// Migrate applies the schema. Every statement is IF NOT EXISTS, so
// running it against an up-to-date database is a no-op.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
