// Package readthrough serves values from the key-value cache when it can and
// from an origin fetch when it must, writing fresh results back best-effort.
package readthrough

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Cache is the subset of the key-value client the orchestrator needs. Both
// methods report success instead of returning errors.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

// Options controls one lookup.
type Options struct {
	// TTL for the value written after a fetch. Zero defers to the cache default.
	TTL time.Duration
	// ForceRefresh skips the cache read and always calls the origin.
	ForceRefresh bool
	// Logger receives decode and write-back warnings. Optional.
	Logger *logging.Logger
}

// Source says where a Result came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceOrigin Source = "origin"
)

// Result is a fetched value plus how it was served.
type Result[T any] struct {
	Value T
	// Source is cache on a hit and origin otherwise.
	Source Source
	// Stored reports whether an origin value was written back.
	Stored bool
	// Bypassed reports that ForceRefresh skipped the cache read.
	Bypassed bool
}

// Hit reports whether the value came from the cache.
func (r Result[T]) Hit() bool {
	return r.Source == SourceCache
}

// Fetch returns the cached value for key, or calls fetch on a miss, a forced
// refresh, an unavailable cache or an undecodable entry. A successful fetch
// is written back once with opts.TTL. Only fetch errors are returned.
func Fetch[T any](ctx context.Context, cache Cache, key string, fetch func(ctx context.Context) (T, error), opts Options) (Result[T], error) {
	if cache != nil && !opts.ForceRefresh {
		if raw, ok := cache.Get(ctx, key); ok {
			var cached T
			if err := json.Unmarshal(raw, &cached); err == nil {
				return Result[T]{Value: cached, Source: SourceCache}, nil
			} else if opts.Logger != nil {
				opts.Logger.Warn("Discarding undecodable cache entry",
					zap.String("key", key),
					zap.Error(err))
			}
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return Result[T]{Value: zero, Source: SourceOrigin, Bypassed: opts.ForceRefresh}, err
	}

	res := Result[T]{Value: value, Source: SourceOrigin, Bypassed: opts.ForceRefresh}
	if cache == nil {
		return res, nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("Skipping cache write for unencodable value",
				zap.String("key", key),
				zap.Error(err))
		}
		return res, nil
	}

	res.Stored = cache.Set(ctx, key, payload, opts.TTL)
	if !res.Stored && opts.Logger != nil {
		opts.Logger.Debug("Cache write skipped", zap.String("key", key))
	}
	return res, nil
}
