// Package kvcache is the best-effort key-value cache used in front of the
// esports data provider. Callers never see backend errors: a failed or
// unconfigured backend simply looks like an empty cache.
package kvcache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Conn when the key does not exist or has expired.
var ErrNotFound = errors.New("kvcache: key not found")

// Conn is a live connection to a cache backend.
type Conn interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	// Scan returns every key matching a Redis glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Dialer opens a Conn. The Client calls it at most once per connection attempt.
type Dialer func(ctx context.Context) (Conn, error)

// ConnState is the lifecycle state of a Client's backend connection.
type ConnState int32

const (
	StateNotAttempted ConnState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateNotAttempted:
		return "not-attempted"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
