package kvcache

import (
	"context"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// MemoryConn is an in-process Conn for local development and tests. Expired
// entries are hidden on read and dropped by Sweep or the next Scan.
type MemoryConn struct {
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time

	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryConn returns an empty in-memory backend.
func NewMemoryConn() *MemoryConn {
	return &MemoryConn{entries: make(map[string]memEntry)}
}

// MemoryDialer hands out the same MemoryConn on every dial.
func MemoryDialer(conn *MemoryConn) Dialer {
	return func(context.Context) (Conn, error) {
		return conn, nil
	}
}

func (m *MemoryConn) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func (m *MemoryConn) Ping(context.Context) error { return nil }

func (m *MemoryConn) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok || entry.expired(m.now()) {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(entry.value))
	copy(cp, entry.value)
	return cp, nil
}

func (m *MemoryConn) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = memEntry{value: cp, expiresAt: expiresAt}
	return nil
}

func (m *MemoryConn) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := m.entries[key]; ok {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryConn) Scan(_ context.Context, pattern string) ([]string, error) {
	// No separators: '*' crosses ':' the way Redis MATCH does.
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var keys []string
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			continue
		}
		if g.Match(key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *MemoryConn) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return ok && !entry.expired(m.now()), nil
}

// Close is a no-op so a shared MemoryConn survives Client.Close and redial.
func (m *MemoryConn) Close() error { return nil }

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryConn) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryConn) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
