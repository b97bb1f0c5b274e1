package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(&Options{
		DefaultTTL:      time.Minute,
		MaxEntries:      100,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "matrix:abc", []byte("payload"), 0))

	got, err := c.Get(ctx, "matrix:abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("abc"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "mutating a returned value must not corrupt the cache")
}

func TestMemoryCache_GetNotFound(t *testing.T) {
	c := newTestMemoryCache(t)

	_, err := c.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 20*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	exists, err := c.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCache_GetWithTTL(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))

	value, ttl, err := c.GetWithTTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestMemoryCache_DeleteAndExists(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Delete(ctx, "k"))

	exists, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	// Удаление отсутствующего ключа не является ошибкой
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestMemoryCache_MultiOps(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	entries := map[string][]byte{
		"result:1": []byte("a"),
		"result:2": []byte("b"),
		"result:3": []byte("c"),
	}
	require.NoError(t, c.MSet(ctx, entries, time.Minute))

	got, err := c.MGet(ctx, []string{"result:1", "result:3", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []byte("a"), got["result:1"])

	deleted, err := c.MDelete(ctx, []string{"result:1", "result:2", "missing"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestMemoryCache_KeysAndDeleteByPattern(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "matrix:a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "matrix:b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "result:a", []byte("3"), 0))

	keys, err := c.Keys(ctx, "matrix:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	deleted, err := c.DeleteByPattern(ctx, "matrix:*")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	keys, err = c.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"result:a"}, keys)
}

func TestMemoryCache_Stats(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "matrix:a", []byte("123"), 0))
	_, _ = c.Get(ctx, "matrix:a")
	_, _ = c.Get(ctx, "missing")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalKeys)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.EqualValues(t, 1, stats.KeysByPrefix["matrix"])
	assert.Equal(t, BackendMemory, stats.Backend)
}

func TestMemoryCache_Clear(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "k2", []byte("v"), 0))
	require.NoError(t, c.Clear(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalKeys)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := NewMemoryCache(&Options{
		DefaultTTL:      time.Minute,
		MaxEntries:      3,
		CleanupInterval: time.Minute,
	})
	defer c.Close()

	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0))
		time.Sleep(5 * time.Millisecond)
	}

	// Обновляем k1, самым старым по доступу становится k2
	_, err := c.Get(ctx, "k1")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k4", []byte("v"), 0))

	_, err = c.Get(ctx, "k2")
	assert.ErrorIs(t, err, ErrKeyNotFound, "LRU entry must be evicted")

	_, err = c.Get(ctx, "k1")
	assert.NoError(t, err)
}

func TestMemoryCache_Closed(t *testing.T) {
	c := NewMemoryCache(nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "double close is a no-op")

	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrCacheClosed)
	assert.ErrorIs(t, c.Clear(ctx), ErrCacheClosed)
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anything", true},
		{"matrix:*", "matrix:abc", true},
		{"matrix:*", "result:abc", false},
		{"*:v1", "matrix:v1", true},
		{"*:v1", "matrix:v2", false},
		{"matrix:*:v1", "matrix:abc:v1", true},
		{"matrix:*:v1", "matrix:abc:v2", false},
		{"matrix:*:v1", "matrix::v1", true},
		{"exact", "exact", true},
		{"exact", "exacto", false},
		{"prefix*suffix", "presuf", false},
		{"a*b", "ab", true},
		{"a*b", "axb", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.pattern, tt.key),
			"pattern %q key %q", tt.pattern, tt.key)
	}
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "matrix", keyPrefix("matrix:abc"))
	assert.Equal(t, "a", keyPrefix("a:b:c"))
	assert.Equal(t, "other", keyPrefix("noseparator"))
	assert.Equal(t, "other", keyPrefix(":leading"))
}
