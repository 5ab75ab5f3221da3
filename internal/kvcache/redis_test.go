package kvcache

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Options) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, &redis.Options{Addr: mr.Addr()}
}

func TestRedisConnPrefixesKeys(t *testing.T) {
	mr, opts := newMiniredis(t)
	client := New(RedisDialer(opts, "fragstat:"), ClientOptions{})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.True(t, client.Set(ctx, "resource:games:all", []byte(`[{"id":1}]`), time.Minute))

	assert.True(t, mr.Exists("fragstat:resource:games:all"))
	assert.False(t, mr.Exists("resource:games:all"))

	value, ok := client.Get(ctx, "resource:games:all")
	require.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, string(value))
	assert.True(t, client.Exists(ctx, "resource:games:all"))
	assert.Equal(t, StateConnected, client.State())
}

func TestRedisConnMissingKeyIsNotFound(t *testing.T) {
	_, opts := newMiniredis(t)
	conn := NewRedisConn(redis.NewClient(opts), "p:")
	t.Cleanup(func() { _ = conn.Close() })

	_, err := conn.Get(context.Background(), "resource:match:404")
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := conn.Exists(context.Background(), "resource:match:404")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisConnTTLExpiry(t *testing.T) {
	mr, opts := newMiniredis(t)
	client := New(RedisDialer(opts, ""), ClientOptions{DefaultTTL: 2 * time.Minute})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.True(t, client.Set(ctx, "resource:home", []byte(`{}`), 30*time.Second))
	require.True(t, client.Set(ctx, "resource:teams:page:1", []byte(`[]`), 0))
	assert.Equal(t, 30*time.Second, mr.TTL("resource:home"))
	assert.Equal(t, 2*time.Minute, mr.TTL("resource:teams:page:1"))

	mr.FastForward(31 * time.Second)
	_, ok := client.Get(ctx, "resource:home")
	assert.False(t, ok)
	_, ok = client.Get(ctx, "resource:teams:page:1")
	assert.True(t, ok)
}

func TestRedisDeleteByPatternWithPrefix(t *testing.T) {
	mr, opts := newMiniredis(t)
	client := New(RedisDialer(opts, "fragstat:"), ClientOptions{})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	for i := 1; i <= deleteBatchSize+20; i++ {
		require.True(t, client.Set(ctx, fmt.Sprintf("resource:matches:page:%d:x", i), []byte("v"), time.Minute))
	}
	require.True(t, client.Set(ctx, "resource:match:7", []byte("v"), time.Minute))
	require.NoError(t, mr.Set("other:resource:matches:page:1:x", "foreign"))

	assert.Equal(t, deleteBatchSize+20, client.DeleteByPattern(ctx, "resource:matches:*"))
	assert.True(t, client.Exists(ctx, "resource:match:7"))
	assert.True(t, mr.Exists("other:resource:matches:page:1:x"))
}

func TestRedisConnScanStripsPrefix(t *testing.T) {
	_, opts := newMiniredis(t)
	conn := NewRedisConn(redis.NewClient(opts), "fragstat:")
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	require.NoError(t, conn.Set(ctx, "resource:standings:1", []byte("a"), time.Minute))
	require.NoError(t, conn.Set(ctx, "resource:standings:2", []byte("b"), time.Minute))

	keys, err := conn.Scan(ctx, "resource:standings:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"resource:standings:1", "resource:standings:2"}, keys)

	n, err := conn.Del(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisDialerUnreachableMarksFailed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	opts := &redis.Options{Addr: mr.Addr(), MaxRetries: -1}
	mr.Close()

	client := New(RedisDialer(opts, ""), ClientOptions{ConnectTimeout: time.Second})
	assert.False(t, client.Set(context.Background(), "k", []byte("v"), time.Minute))
	assert.Equal(t, StateFailed, client.State())
	assert.Error(t, client.LastError())
}
