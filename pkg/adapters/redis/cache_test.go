package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/mathspeak/pkg/adapters/redis"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, opts ...redis.Option) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisCache_Contract(t *testing.T) {
	cache, _ := newCache(t)
	ports.RunResultCacheContract(t, cache)
}

func TestRedisCache_TTL_Expiration(t *testing.T) {
	cache, mr := newCache(t, redis.WithTTL(time.Second))
	ctx := context.Background()
	key := domain.CacheKey{Tree: "t1", Node: 0, Constraint: domain.DefaultConstraint, Generation: 1}

	require.NoError(t, cache.Put(ctx, key, []domain.Description{{Text: "x"}}))
	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ClearOnlyTouchesPrefix(t *testing.T) {
	cache, mr := newCache(t, redis.WithPrefix("app:speech:"))
	ctx := context.Background()

	require.NoError(t, mr.Set("unrelated", "keep"))
	for i := 0; i < 600; i++ {
		key := domain.CacheKey{Tree: "t", Node: domain.NodeID(i), Constraint: domain.DefaultConstraint}
		require.NoError(t, cache.Put(ctx, key, []domain.Description{{Text: "x"}}))
	}

	require.NoError(t, cache.Clear(ctx))

	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}

func TestRedisCache_CorruptValue(t *testing.T) {
	cache, mr := newCache(t, redis.WithPrefix("p:"))
	key := domain.CacheKey{Tree: "t", Node: 1, Constraint: domain.DefaultConstraint, Generation: 3}
	require.NoError(t, mr.Set("p:3:default:default:t:1", "{not json"))

	_, ok, err := cache.Get(context.Background(), key)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisCache_KeySegmentsAreEscaped(t *testing.T) {
	cache, mr := newCache(t, redis.WithPrefix("p:"))
	ctx := context.Background()
	a := domain.CacheKey{Tree: "t", Constraint: domain.Constraint{Domain: "a:b", Style: "c"}}
	b := domain.CacheKey{Tree: "t", Constraint: domain.Constraint{Domain: "a", Style: "b:c"}}

	require.NoError(t, cache.Put(ctx, a, []domain.Description{{Text: "x"}}))
	_, ok, err := cache.Get(ctx, b)
	require.NoError(t, err)
	assert.False(t, ok)

	seq, ok, err := cache.Get(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", seq[0].Text)
	assert.Equal(t, []string{"p:0:a%3Ab:c:t:0"}, mr.Keys())
}
