package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewCacheService(client), mr
}

func TestCacheService_SetGet(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"runs": 55}, time.Minute))

	var got map[string]int
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, 55, got["runs"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestCacheService_DeletePrefix(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	day := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	for _, p := range []string{"p1", "p2", "p3"} {
		require.NoError(t, cache.Set(ctx, FeatureVectorCacheKey(cricket.FamilyT20, p, day, "Pune"), p, 0))
	}
	require.NoError(t, cache.Set(ctx, FeatureVectorCacheKey(cricket.FamilyODI, "p1", day, "Pune"), "odi", 0))

	n, err := cache.DeletePrefix(ctx, FeatureFamilyPrefix(cricket.FamilyT20))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, mr.Keys(), 1)
	assert.True(t, mr.Exists("features:odi:p1:2023-05-01:Pune"))
}

func TestCacheService_SetWithRetryStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewCacheService(client)
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cache.SetWithRetry(ctx, "k", 1, time.Minute, 3)
	assert.Error(t, err)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
