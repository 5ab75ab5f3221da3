package kvcache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConnExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mem := NewMemoryConn()
	mem.Clock = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, mem.Set(ctx, "b", []byte("2"), 0))

	got, err := mem.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))

	now = now.Add(2 * time.Second)
	_, err = mem.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, mem.Sweep())
	assert.Equal(t, 1, mem.Len())
}

func TestMemoryConnCopiesValues(t *testing.T) {
	mem := NewMemoryConn()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, mem.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, err := mem.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryConnScanGlob(t *testing.T) {
	mem := NewMemoryConn()
	ctx := context.Background()
	for _, k := range []string{
		"resource:matches:page:1:abc+/=",
		"resource:matches:page:12:x",
		"resource:match:7",
		"resource:tournaments:running:page:1",
	} {
		require.NoError(t, mem.Set(ctx, k, []byte("v"), 0))
	}

	keys, err := mem.Scan(ctx, "resource:matches:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"resource:matches:page:12:x", "resource:matches:page:1:abc+/="}, keys)

	keys, err = mem.Scan(ctx, "resource:matches:page:?:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"resource:matches:page:1:abc+/="}, keys)

	keys, err = mem.Scan(ctx, "resource:match:[0-9]")
	require.NoError(t, err)
	assert.Equal(t, []string{"resource:match:7"}, keys)
}
