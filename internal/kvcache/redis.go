package kvcache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanCount = 200

// RedisConn implements Conn on a go-redis client. Keys are namespaced with
// an optional prefix that callers never see.
type RedisConn struct {
	client *redis.Client
	prefix string
}

// NewRedisConn wraps an existing client.
func NewRedisConn(client *redis.Client, prefix string) *RedisConn {
	return &RedisConn{client: client, prefix: prefix}
}

// RedisDialer builds a fresh go-redis client per connection attempt. The
// Client's ping decides whether the attempt succeeded.
func RedisDialer(opts *redis.Options, prefix string) Dialer {
	return func(context.Context) (Conn, error) {
		if opts == nil {
			return nil, errors.New("redis options are required")
		}
		cp := *opts
		return NewRedisConn(redis.NewClient(&cp), prefix), nil
	}
}

func (c *RedisConn) key(k string) string {
	return c.prefix + k
}

// Client exposes the underlying go-redis client for components that share
// the connection, such as the rate-limit counter store.
func (c *RedisConn) Client() *redis.Client {
	return c.client
}

func (c *RedisConn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisConn) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (c *RedisConn) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *RedisConn) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Result()
}

// Scan walks the keyspace with SCAN rather than KEYS so large databases are
// not blocked.
func (c *RedisConn) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.key(pattern), scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), c.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *RedisConn) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisConn) Close() error {
	return c.client.Close()
}
