package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/redis/go-redis/v9"

	"github.com/fragstat/fragstat/internal/ailink/driver"
	"github.com/fragstat/fragstat/internal/ailink/driver/openai"
	"github.com/fragstat/fragstat/internal/catalog"
	"github.com/fragstat/fragstat/internal/config"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/kvcache"
	"github.com/fragstat/fragstat/internal/odds"
	"github.com/fragstat/fragstat/internal/security"
)

// services holds the wired domain components for one process.
type services struct {
	cfg      *config.Config
	cache    *kvcache.Client
	upstream *esports.Client
	catalog  *catalog.Service
	odds     *odds.Predictor
}

// newServices builds cache, upstream client, catalog and odds predictor from
// cfg. Nothing connects until first use.
func newServices(cfg *config.Config, logger *logging.Logger) (*services, error) {
	cache, err := kvcache.NewFromSettings(cfg.Cache.Settings(), logger)
	if err != nil {
		return nil, fmt.Errorf("%w: cache: %v", errConfig, err)
	}

	upstream, err := esports.NewClient(cfg.Upstream.Client(), nil, logger)
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("%w: upstream: %v", errConfig, err)
	}

	svc := catalog.NewService(upstream, cache, logger)

	var d driver.Driver
	if cfg.Odds.Enabled() {
		client := openai.NewClient(cfg.Odds.BaseURL, cfg.Odds.APIKey)
		client.Timeout = cfg.Odds.Timeout
		d = client
	}

	return &services{
		cfg:      cfg,
		cache:    cache,
		upstream: upstream,
		catalog:  svc,
		odds:     odds.NewPredictor(d, svc, cache, cfg.Odds.Options(), logger),
	}, nil
}

// Close releases the cache connection.
func (s *services) Close() error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// newGate builds the security gate. With rate_limit_store=redis the counters
// live in Redis and the returned closer releases that client.
func newGate(cfg *config.Config, logger *logging.Logger) (*security.Gate, func() error, error) {
	closer := func() error { return nil }

	var store security.CounterStore
	if cfg.Security.RateLimitStore == "redis" {
		opts, err := cfg.Cache.Settings().RedisOptions()
		if err != nil {
			return nil, closer, fmt.Errorf("%w: rate limit store: %v", errConfig, err)
		}
		if opts == nil {
			return nil, closer, fmt.Errorf("%w: rate limit store: redis is not configured", errConfig)
		}
		client := redis.NewClient(opts)
		prefix := cfg.Cache.KeyPrefix
		if prefix != "" {
			prefix += "rl:"
		}
		store = security.NewRedisCounterStore(client, prefix)
		closer = client.Close
	}

	gate, err := security.NewGate(cfg.Security.Gate(cfg.Environment), store, logger)
	if err != nil {
		_ = closer()
		return nil, func() error { return nil }, fmt.Errorf("%w: security: %v", errConfig, err)
	}
	return gate, closer, nil
}
