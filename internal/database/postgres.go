// Package database provides PostgreSQL connectivity, the idempotent
// schema migration, and the repositories for jobs, articles, processed
// URLs, sources, and prompts.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/macsteckler/lightspeeed-scraper/internal/config"
)

const (
	// DefaultMaxOpenConns bounds the pool when config leaves it unset.
	DefaultMaxOpenConns = 20
	// DefaultMaxIdleConns is the default idle connection count.
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default connection lifetime.
	DefaultConnMaxLifetime = 30 * time.Minute
	// DefaultPingTimeout bounds the connect-time ping.
	DefaultPingTimeout = 5 * time.Second
)

// Connect opens a PostgreSQL pool from the given settings and verifies
// it with a ping.
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxConnections
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdleConns
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = DefaultConnMaxLifetime
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}
