package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunResultCacheContract runs a suite of tests to verify that a ResultCache
// implementation adheres to the interface contract.
func RunResultCacheContract(t *testing.T, cache ResultCache) {
	ctx := context.Background()
	tree := "contract-tree-" + time.Now().Format("20060102150405.000000")

	key := domain.CacheKey{Tree: tree, Node: 3, Constraint: domain.DefaultConstraint, Generation: 1}
	value := []domain.Description{
		domain.NewDescription("the fraction", 3),
		domain.NewDescription("1", 4).WithProsody(domain.Prosody{domain.ProsodyPitch: 0.5}),
		{Text: "over"},
	}

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, value))

		got, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, value, got)
	})

	t.Run("Empty sequence is a hit", func(t *testing.T) {
		empty := key
		empty.Node = 9
		require.NoError(t, cache.Put(ctx, empty, []domain.Description{}))

		got, ok, err := cache.Get(ctx, empty)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("Keys are distinct", func(t *testing.T) {
		variants := []domain.CacheKey{
			{Tree: tree + "-other", Node: 3, Constraint: domain.DefaultConstraint, Generation: 1},
			{Tree: tree, Node: 4, Constraint: domain.DefaultConstraint, Generation: 1},
			{Tree: tree, Node: 3, Constraint: domain.Constraint{Domain: "default", Style: "terse"}, Generation: 1},
			{Tree: tree, Node: 3, Constraint: domain.DefaultConstraint, Generation: 2},
		}
		for _, k := range variants {
			_, ok, err := cache.Get(ctx, k)
			require.NoError(t, err)
			assert.False(t, ok, "unexpected hit for %+v", k)
		}
	})

	t.Run("Stored value is isolated", func(t *testing.T) {
		got, _, err := cache.Get(ctx, key)
		require.NoError(t, err)
		got[0].Text = "mutated"
		got[1].Prosody[domain.ProsodyPitch] = 9

		again, _, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, again)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, cache.Clear(ctx))
		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
