package keypool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestPool(t *testing.T, keys []string) (*Pool, *fakeClock) {
	t.Helper()

	pool, err := New(keys)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	pool.now = clock.Now
	// Deterministic tie-break for tests.
	pool.pick = func(n int) int { return 0 }

	return pool, clock
}

func TestNewRequiresKeys(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestSize(t *testing.T) {
	pool, _ := newTestPool(t, []string{"a", "b", "c"})
	assert.Equal(t, 3, pool.Size())
}

func TestAcquireRespectsPerKeyQuota(t *testing.T) {
	pool, _ := newTestPool(t, []string{"k1", "k2"})
	ctx := context.Background()

	// Two keys at five calls each: ten immediate acquisitions.
	counts := map[string]int{}
	for i := 0; i < 10; i++ {
		key, err := pool.Acquire(ctx)
		require.NoError(t, err)
		counts[key]++
	}

	assert.Equal(t, 5, counts["k1"])
	assert.Equal(t, 5, counts["k2"])
}

func TestAcquirePrefersLeastUsedKey(t *testing.T) {
	pool, _ := newTestPool(t, []string{"k1", "k2"})
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)

	// The second call must pick the other key: it has zero usage.
	second, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestAcquireBlocksWhenSaturatedThenRecovers(t *testing.T) {
	pool, clock := newTestPool(t, []string{"k1"})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := pool.Acquire(ctx)
		require.NoError(t, err)
	}

	// Saturated: a non-blocking pass reports the wait until the oldest
	// timestamp leaves the window.
	key, wait := pool.tryAcquire()
	assert.Empty(t, key)
	assert.Equal(t, time.Minute, wait)

	// After the window passes, acquisition succeeds again.
	clock.Advance(61 * time.Second)
	key, wait = pool.tryAcquire()
	assert.Equal(t, "k1", key)
	assert.Zero(t, wait)
}

func TestAcquireWindowSlides(t *testing.T) {
	pool, clock := newTestPool(t, []string{"k1"})
	ctx := context.Background()

	// Three calls now, two calls thirty seconds later.
	for i := 0; i < 3; i++ {
		_, err := pool.Acquire(ctx)
		require.NoError(t, err)
	}
	clock.Advance(30 * time.Second)
	for i := 0; i < 2; i++ {
		_, err := pool.Acquire(ctx)
		require.NoError(t, err)
	}

	// Saturated; the first three age out 30s from now.
	key, wait := pool.tryAcquire()
	assert.Empty(t, key)
	assert.Equal(t, 30*time.Second, wait)

	// Advance past the first burst only: three slots free up.
	clock.Advance(31 * time.Second)
	for i := 0; i < 3; i++ {
		key, wait = pool.tryAcquire()
		assert.Equal(t, "k1", key, "call %d", i)
		assert.Zero(t, wait)
	}
	key, _ = pool.tryAcquire()
	assert.Empty(t, key)
}

func TestAcquireNeverExceedsQuotaInWindow(t *testing.T) {
	pool, clock := newTestPool(t, []string{"k1", "k2", "k3"})
	ctx := context.Background()

	issued := map[string][]time.Time{}
	for step := 0; step < 40; step++ {
		key, wait := pool.tryAcquire()
		if key == "" {
			clock.Advance(wait + time.Second)
			continue
		}
		issued[key] = append(issued[key], clock.Now())
		clock.Advance(2 * time.Second)
	}

	// Sliding-window property: no key sees more than five issuances in
	// any sixty-second span.
	for key, stamps := range issued {
		for i := range stamps {
			inWindow := 0
			for j := i; j < len(stamps) && stamps[j].Sub(stamps[i]) < time.Minute; j++ {
				inWindow++
			}
			assert.LessOrEqual(t, inWindow, 5, "key %s window starting %v", key, stamps[i])
		}
	}

	_ = ctx
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	pool, _ := newTestPool(t, []string{"k1"})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := pool.Acquire(ctx)
		require.NoError(t, err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Acquire(cancelCtx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireConcurrentCallersSerialize(t *testing.T) {
	pool, _ := newTestPool(t, []string{"k1", "k2"})
	pool.now = time.Now

	var wg sync.WaitGroup
	results := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := pool.Acquire(context.Background())
			assert.NoError(t, err)
			results <- key
		}()
	}
	wg.Wait()
	close(results)

	counts := map[string]int{}
	for key := range results {
		counts[key]++
	}
	assert.Equal(t, 5, counts["k1"])
	assert.Equal(t, 5, counts["k2"])
}
