package kvcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/metrics"
)

const (
	// DefaultConnectTimeout bounds a single connection attempt (dial + ping).
	DefaultConnectTimeout = 5 * time.Second

	// DefaultTTL applies when Set is called without a TTL.
	DefaultTTL = 10 * time.Minute

	deleteBatchSize = 500
)

// ClientOptions tunes a Client. Zero values select the defaults.
type ClientOptions struct {
	Logger         *logging.Logger
	ConnectTimeout time.Duration
	DefaultTTL     time.Duration
}

// Client is a lazily connected cache handle. It connects on first use,
// remembers a failed attempt, and degrades every operation to a no-op while
// the backend is unavailable.
type Client struct {
	dial           Dialer
	logger         *logging.Logger
	connectTimeout time.Duration
	defaultTTL     time.Duration

	mu      sync.Mutex
	state   ConnState
	conn    Conn
	lastErr error
	// pending is closed when the in-flight connection attempt settles.
	pending chan struct{}
}

// New returns a Client that will connect through dial on first use.
func New(dial Dialer, opts ClientOptions) *Client {
	c := &Client{
		dial:           dial,
		logger:         opts.Logger,
		connectTimeout: opts.ConnectTimeout,
		defaultTTL:     opts.DefaultTTL,
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = DefaultConnectTimeout
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultTTL
	}
	return c
}

// NewUnconfigured returns a Client with no backend. It is never available
// and every operation is a no-op.
func NewUnconfigured() *Client {
	return New(nil, ClientOptions{})
}

// Configured reports whether the client has a backend to talk to.
func (c *Client) Configured() bool {
	return c != nil && c.dial != nil
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	if c == nil {
		return StateNotAttempted
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error from the most recent failed connection attempt.
func (c *Client) LastError() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Available connects if needed and reports whether the backend is usable.
func (c *Client) Available(ctx context.Context) bool {
	_, ok := c.acquire(ctx)
	return ok
}

// Reset forgets a failed connection attempt so the next operation retries.
func (c *Client) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateFailed {
		c.state = StateNotAttempted
		c.lastErr = nil
	}
}

// Close releases the backend connection. The client returns to the
// not-attempted state and reconnects on next use. An attempt still in flight
// is left to settle.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting {
		return nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateNotAttempted
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// CheckHealth reports an error when a configured backend cannot be reached.
// An unconfigured client is healthy: the service runs in pass-through mode.
func (c *Client) CheckHealth(ctx context.Context) error {
	if !c.Configured() {
		return nil
	}
	conn, ok := c.acquire(ctx)
	if !ok {
		if err := c.LastError(); err != nil {
			return fmt.Errorf("cache unavailable: %w", err)
		}
		return errors.New("cache unavailable")
	}
	return conn.Ping(ctx)
}

// Get returns the stored value and true, or nil and false on a miss, an
// unavailable backend or a backend error.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	conn, ok := c.acquire(ctx)
	if !ok {
		return nil, false
	}
	value, err := conn.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logOpError("get", key, err)
			metrics.RecordCacheOperation("get", "error")
		} else {
			metrics.RecordCacheOperation("get", "miss")
		}
		return nil, false
	}
	metrics.RecordCacheOperation("get", "hit")
	return value, true
}

// Set stores value under key with the given TTL, or the default TTL when
// ttl is not positive. It reports whether the write succeeded.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	conn, ok := c.acquire(ctx)
	if !ok {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := conn.Set(ctx, key, value, ttl); err != nil {
		c.logOpError("set", key, err)
		metrics.RecordCacheOperation("set", "error")
		return false
	}
	metrics.RecordCacheOperation("set", "ok")
	return true
}

// Delete removes key and reports whether the call succeeded.
func (c *Client) Delete(ctx context.Context, key string) bool {
	conn, ok := c.acquire(ctx)
	if !ok {
		return false
	}
	if _, err := conn.Del(ctx, key); err != nil {
		c.logOpError("delete", key, err)
		metrics.RecordCacheOperation("delete", "error")
		return false
	}
	metrics.RecordCacheOperation("delete", "ok")
	return true
}

// DeleteByPattern removes every key matching a Redis glob pattern and
// returns how many were deleted.
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) int {
	conn, ok := c.acquire(ctx)
	if !ok {
		return 0
	}
	keys, err := conn.Scan(ctx, pattern)
	if err != nil {
		c.logOpError("scan", pattern, err)
		metrics.RecordCacheOperation("delete_pattern", "error")
		return 0
	}

	deleted := 0
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		n, err := conn.Del(ctx, keys[start:end]...)
		if err != nil {
			c.logOpError("delete_pattern", pattern, err)
			metrics.RecordCacheOperation("delete_pattern", "error")
			return deleted
		}
		deleted += int(n)
	}
	metrics.RecordCacheOperation("delete_pattern", "ok")
	return deleted
}

// Exists reports whether key is present. Errors read as absent.
func (c *Client) Exists(ctx context.Context, key string) bool {
	conn, ok := c.acquire(ctx)
	if !ok {
		return false
	}
	found, err := conn.Exists(ctx, key)
	if err != nil {
		c.logOpError("exists", key, err)
		return false
	}
	return found
}

// acquire returns the live connection, connecting on first use. The attempt
// runs detached from ctx: a caller that gives up only stops waiting, and
// concurrent callers share the one attempt in flight.
func (c *Client) acquire(ctx context.Context) (Conn, bool) {
	if !c.Configured() {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		c.mu.Lock()
		switch c.state {
		case StateConnected:
			conn := c.conn
			c.mu.Unlock()
			return conn, true
		case StateFailed:
			c.mu.Unlock()
			return nil, false
		case StateNotAttempted:
			c.state = StateConnecting
			c.pending = make(chan struct{})
			go c.establish(context.WithoutCancel(ctx), c.pending)
		}
		pending := c.pending
		c.mu.Unlock()

		select {
		case <-pending:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// establish runs one connection attempt and publishes its outcome.
func (c *Client) establish(ctx context.Context, done chan struct{}) {
	started := time.Now()
	conn, err := c.connect(ctx)
	elapsed := time.Since(started)

	c.mu.Lock()
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
	} else {
		c.conn = conn
		c.state = StateConnected
		c.lastErr = nil
	}
	c.pending = nil
	close(done)
	c.mu.Unlock()

	if err != nil {
		metrics.RecordCacheConnect(StateFailed.String(), elapsed)
		if c.logger != nil {
			c.logger.Warn("Cache connection failed, continuing without cache",
				zap.Duration("timeout", c.connectTimeout),
				zap.Error(err))
		}
		return
	}
	metrics.RecordCacheConnect(StateConnected.String(), elapsed)
	if c.logger != nil {
		c.logger.Info("Cache connected", zap.Duration("elapsed", elapsed))
	}
}

type dialResult struct {
	conn Conn
	err  error
}

// connect runs dial and ping under the connect timeout. A dialer that ignores
// its context is abandoned once the timeout fires and its connection closed
// when it eventually returns.
func (c *Client) connect(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	done := make(chan dialResult, 1)
	go func() {
		conn, err := c.dial(ctx)
		if err == nil && conn != nil {
			if pingErr := conn.Ping(ctx); pingErr != nil {
				_ = conn.Close()
				conn, err = nil, pingErr
			}
		}
		if err == nil && conn == nil {
			err = errors.New("dialer returned no connection")
		}
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case res := <-done:
		return res.conn, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("connect timed out after %s: %w", c.connectTimeout, ctx.Err())
	}
}

func (c *Client) logOpError(op, key string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("Cache operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
}
