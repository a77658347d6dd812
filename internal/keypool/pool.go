// Package keypool schedules access to a set of rate-limited extraction
// API keys. The upstream API allows five calls per key per minute, so
// the pool tracks a sliding window of issuance timestamps for every key
// and blocks callers cooperatively when the whole pool is saturated.
package keypool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

const (
	// callsPerWindow is the per-key quota inside the sliding window.
	callsPerWindow = 5
	// window is the width of the sliding usage window.
	window = time.Minute
)

// ErrNoKeys is returned when the pool is constructed without any keys.
var ErrNoKeys = errors.New("keypool: no api keys configured")

// Pool hands out API keys respecting the per-minute quota. All state is
// process-local and rebuilt empty on restart.
type Pool struct {
	mu    sync.Mutex
	keys  []string
	usage map[string][]time.Time

	now  func() time.Time
	pick func(n int) int
}

// New creates a Pool over the given keys.
func New(keys []string) (*Pool, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	usage := make(map[string][]time.Time, len(keys))
	for _, key := range keys {
		usage[key] = nil
	}

	return &Pool{
		keys:  append([]string(nil), keys...),
		usage: usage,
		now:   time.Now,
		pick:  rand.Intn,
	}, nil
}

// Size returns the number of keys in the pool. The batch processor uses
// it to size its fan-out semaphore.
func (p *Pool) Size() int {
	return len(p.keys)
}

// Acquire returns a key that has been used fewer than five times in the
// trailing minute, preferring the least-used keys and breaking ties
// uniformly at random. When every key is saturated it sleeps, without
// holding the lock, until the earliest in-window timestamp ages out,
// then tries again. Blocks until a key is available or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	for {
		key, wait := p.tryAcquire()
		if key != "" {
			return key, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryAcquire attempts one non-blocking pass. It returns either the
// selected key, or the duration until the earliest key frees up.
func (p *Pool) tryAcquire() (string, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	cutoff := now.Add(-window)

	for key, stamps := range p.usage {
		p.usage[key] = pruneBefore(stamps, cutoff)
	}

	// Collect the least-used eligible keys.
	var candidates []string
	minCount := callsPerWindow
	for _, key := range p.keys {
		count := len(p.usage[key])
		if count >= callsPerWindow {
			continue
		}
		switch {
		case count < minCount:
			minCount = count
			candidates = append(candidates[:0], key)
		case count == minCount:
			candidates = append(candidates, key)
		}
	}

	if len(candidates) > 0 {
		key := candidates[p.pick(len(candidates))]
		p.usage[key] = append(p.usage[key], now)
		return key, 0
	}

	// Every key is saturated. The usage lists are time-ordered, so the
	// head of each list is that key's oldest in-window call.
	var earliestFree time.Time
	for _, key := range p.keys {
		stamps := p.usage[key]
		if len(stamps) == 0 {
			continue
		}
		free := stamps[0].Add(window)
		if earliestFree.IsZero() || free.Before(earliestFree) {
			earliestFree = free
		}
	}

	wait := earliestFree.Sub(now)
	if wait < 0 {
		wait = 0
	}

	return "", wait
}

// pruneBefore drops timestamps at or before the cutoff, keeping order.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}

	return stamps[idx:]
}
