package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	now := start
	store := NewMemoryCounterStore()
	limiter := &RateLimiter{
		Store:  store,
		Window: 3 * time.Minute,
		Max:    100,
		Clock:  func() time.Time { return now },
	}
	ctx := context.Background()

	for i := 1; i <= 100; i++ {
		d, err := limiter.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		now = now.Add(time.Second)
	}

	d, err := limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 101, d.Count)
	assert.Equal(t, start.Add(3*time.Minute), d.ResetAt)
	assert.Zero(t, d.Remaining)

	other, err := limiter.Allow(ctx, "198.51.100.4")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "counters are per client")

	now = start.Add(3 * time.Minute)
	d, err = limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, now.Add(3*time.Minute), d.ResetAt)
}

func TestRateLimiterSweepsExpiredCounters(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	store := NewMemoryCounterStore()
	limiter := &RateLimiter{Store: store, Window: time.Minute, Max: 5, Clock: func() time.Time { return now }}
	ctx := context.Background()

	for _, ip := range []string{"a", "b", "c"} {
		_, err := limiter.Allow(ctx, ip)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.Len())

	now = now.Add(2 * time.Minute)
	_, err := limiter.Allow(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

type brokenStore struct{}

func (brokenStore) Increment(context.Context, string, time.Duration, time.Time) (Counter, error) {
	return Counter{}, errors.New("redis: connection refused")
}
func (brokenStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }
func (brokenStore) Name() string                                  { return "broken" }

func TestRateLimiterFailsOpen(t *testing.T) {
	limiter := &RateLimiter{Store: brokenStore{}, Max: 1}
	d, err := limiter.Allow(context.Background(), "a")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := &RateLimiter{Store: NewMemoryCounterStore()}
	d, err := limiter.Allow(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimitMax-1, d.Remaining)
}
