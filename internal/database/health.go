package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Health supervision constants.
const (
	// HealthProbeTimeout bounds a single SELECT 1 round trip.
	HealthProbeTimeout = 10 * time.Second
	// RefreshTimeout bounds a pool refresh.
	RefreshTimeout = 15 * time.Second

	// probeInterval is how long a healthy pool goes between probes.
	probeInterval = 5 * time.Minute
	// refreshFailureStreak is the probe-failure streak that forces a
	// refresh on the next due probe.
	refreshFailureStreak = 3
)

// Health supervises a connection pool. Workers call ProbeIfDue at the top
// of each poll iteration; a healthy pool is probed at most every five
// minutes, a failing one every iteration until a refresh brings it back.
type Health struct {
	db      *sqlx.DB
	maxIdle int

	mu        sync.Mutex
	lastProbe time.Time
	streak    int
}

// NewHealth creates a pool supervisor. maxIdleConns is the idle cap to
// restore after a refresh drops the pooled connections.
func NewHealth(db *sqlx.DB, maxIdleConns int) *Health {
	if maxIdleConns <= 0 {
		maxIdleConns = DefaultMaxIdleConns
	}
	return &Health{db: db, maxIdle: maxIdleConns}
}

// Probe runs a SELECT 1 round trip and records the outcome.
func (h *Health) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, HealthProbeTimeout)
	defer cancel()

	var one int
	err := h.db.GetContext(probeCtx, &one, "SELECT 1")

	h.mu.Lock()
	h.lastProbe = time.Now()
	if err != nil {
		h.streak++
	} else {
		h.streak = 0
	}
	h.mu.Unlock()

	if err != nil {
		return fmt.Errorf("database probe failed: %w", err)
	}
	return nil
}

// ProbeIfDue probes when the last probe is older than the probe interval
// or the failure streak has reached the refresh threshold. It reports
// whether a probe ran. A due probe that fails at the threshold refreshes
// the pool before returning.
func (h *Health) ProbeIfDue(ctx context.Context) (bool, error) {
	h.mu.Lock()
	due := time.Since(h.lastProbe) >= probeInterval || h.streak >= refreshFailureStreak
	h.mu.Unlock()

	if !due {
		return false, nil
	}

	probeErr := h.Probe(ctx)
	if probeErr == nil {
		return true, nil
	}

	if h.FailureStreak() >= refreshFailureStreak {
		if refreshErr := h.Refresh(ctx); refreshErr != nil {
			return true, fmt.Errorf("pool refresh after failed probe: %w", refreshErr)
		}
		return true, nil
	}
	return true, probeErr
}

// Refresh drops every pooled connection and dials a fresh one. sql.DB
// re-establishes connections lazily, so discarding the idle set plus one
// verified dial rebuilds the pool without invalidating shared handles.
// A successful refresh resets the failure streak.
func (h *Health) Refresh(ctx context.Context) error {
	h.db.SetMaxIdleConns(0)
	h.db.SetMaxIdleConns(h.maxIdle)

	refreshCtx, cancel := context.WithTimeout(ctx, RefreshTimeout)
	defer cancel()

	if err := h.db.PingContext(refreshCtx); err != nil {
		return fmt.Errorf("failed to refresh database pool: %w", err)
	}

	h.mu.Lock()
	h.streak = 0
	h.mu.Unlock()
	return nil
}

// FailureStreak returns the current consecutive probe-failure count.
func (h *Health) FailureStreak() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streak
}
