package security

import (
	"context"
	"sync"
	"time"
)

// Default fixed-window limits.
const (
	DefaultRateLimitWindow = 3 * time.Minute
	DefaultRateLimitMax    = 100
)

// Counter is a client's request count in its current window.
type Counter struct {
	Count   int
	ResetAt time.Time
}

// CounterStore keeps per-client fixed-window counters.
type CounterStore interface {
	// Increment counts one request for key. A missing or expired counter
	// restarts at 1 with ResetAt = now + window.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error)
	// Sweep removes counters whose window has ended.
	Sweep(ctx context.Context, now time.Time) (int, error)
	// Name identifies the store in logs and metrics.
	Name() string
}

// RateLimiter enforces a fixed request window per client.
type RateLimiter struct {
	Store  CounterStore
	Window time.Duration
	Max    int
	Clock  func() time.Time
}

// RateDecision is the outcome of one rate-limit check.
type RateDecision struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

// Allow counts a request from client and reports whether it fits in the
// window. Expired counters are swept first. A store failure allows the
// request and returns the error for logging.
func (l *RateLimiter) Allow(ctx context.Context, client string) (RateDecision, error) {
	if l == nil || l.Store == nil {
		return RateDecision{Allowed: true}, nil
	}

	now := l.now()
	if _, err := l.Store.Sweep(ctx, now); err != nil {
		return RateDecision{Allowed: true}, err
	}

	counter, err := l.Store.Increment(ctx, client, l.window(), now)
	if err != nil {
		return RateDecision{Allowed: true}, err
	}

	max := l.max()
	decision := RateDecision{
		Allowed: counter.Count <= max,
		Count:   counter.Count,
		ResetAt: counter.ResetAt,
	}
	if remaining := max - counter.Count; remaining > 0 {
		decision.Remaining = remaining
	}
	return decision, nil
}

func (l *RateLimiter) window() time.Duration {
	if l.Window <= 0 {
		return DefaultRateLimitWindow
	}
	return l.Window
}

func (l *RateLimiter) max() int {
	if l.Max <= 0 {
		return DefaultRateLimitMax
	}
	return l.Max
}

func (l *RateLimiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

// MemoryCounterStore keeps counters in process memory. Counters are lost on
// restart and not shared between instances.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]Counter
}

// NewMemoryCounterStore returns an empty store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]Counter)}
}

func (m *MemoryCounterStore) Name() string { return "memory" }

func (m *MemoryCounterStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counter, ok := m.counters[key]
	if !ok || !now.Before(counter.ResetAt) {
		counter = Counter{Count: 1, ResetAt: now.Add(window)}
	} else {
		counter.Count++
	}
	m.counters[key] = counter
	return counter, nil
}

func (m *MemoryCounterStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, counter := range m.counters {
		if !now.Before(counter.ResetAt) {
			delete(m.counters, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live counters.
func (m *MemoryCounterStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
