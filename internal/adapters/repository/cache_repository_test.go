package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/ports"
)

func setupTestCache(t *testing.T) (ports.CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheRepository(client), mr
}

func TestCacheRepository_SetGet(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "motivation:winning", "Keep going.", time.Minute))
	assert.True(t, mr.Exists("companion:motivation:winning"))

	var got string
	require.NoError(t, cache.Get(ctx, "motivation:winning", &got))
	assert.Equal(t, "Keep going.", got)

	ok, err := cache.Exists(ctx, "motivation:winning")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheRepository_Miss(t *testing.T) {
	cache, _ := setupTestCache(t)

	var got string
	err := cache.Get(context.Background(), "absent", &got)
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestCacheRepository_Expiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "health:p1", "Stable.", time.Second))
	mr.FastForward(2 * time.Second)

	var got string
	assert.ErrorIs(t, cache.Get(ctx, "health:p1", &got), ports.ErrCacheMiss)
}

func TestCacheRepository_Delete(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 42, 0))
	require.NoError(t, cache.Delete(ctx, "k"))

	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, cache.Ping(ctx))
}
