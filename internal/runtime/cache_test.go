package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/mathspeak/internal/runtime"
	"github.com/aretw0/mathspeak/pkg/adapters/memory"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/rulebase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache wraps the memory cache and records traffic.
type countingCache struct {
	*memory.Cache
	hits, puts, clears int
	failGet            bool
}

func (c *countingCache) Get(ctx context.Context, key domain.CacheKey) ([]domain.Description, bool, error) {
	if c.failGet {
		return nil, false, errors.New("backend down")
	}
	seq, ok, err := c.Cache.Get(ctx, key)
	if ok {
		c.hits++
	}
	return seq, ok, err
}

func (c *countingCache) Put(ctx context.Context, key domain.CacheKey, value []domain.Description) error {
	c.puts++
	return c.Cache.Put(ctx, key, value)
}

func (c *countingCache) Clear(ctx context.Context) error {
	c.clears++
	return c.Cache.Clear(ctx)
}

func newCounting(t *testing.T) *countingCache {
	t.Helper()
	inner, err := memory.NewCache(0)
	require.NoError(t, err)
	return &countingCache{Cache: inner}
}

func TestEngine_CacheTransparency(t *testing.T) {
	ctx := context.Background()
	rules := append(fractionRules(), domain.Rule{
		Name:   "relation",
		Query:  domain.Query{Kind: domain.KindRelation},
		Action: []domain.Component{domain.Recurse(domain.Child(0)), domain.Pause(100), domain.Literal("equals"), domain.Personality(domain.Prosody{domain.ProsodyPitch: 0.2}), domain.Recurse(domain.Child(1))},
	})

	tree := domain.NewTree()
	root := tree.Add(domain.KindRelation, "", "", nil)
	left, _ := tree.AddChild(root, domain.KindFraction, "", "", nil)
	_, _ = tree.AddChild(left, domain.KindNumber, "", "1", nil)
	_, _ = tree.AddChild(left, domain.KindNumber, "", "2", nil)
	_, _ = tree.AddChild(root, domain.KindNumber, "", "0.5", nil)

	cached := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(newCounting(t)))
	uncached := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(newCounting(t)), runtime.WithCacheEnabled(false))
	require.NoError(t, cached.LoadRules(ctx, rules...))
	require.NoError(t, uncached.LoadRules(ctx, rules...))

	var first []domain.Description
	for i := 0; i < 3; i++ {
		a, err := cached.Evaluate(ctx, tree, root, domain.DefaultConstraint)
		require.NoError(t, err)
		b, err := uncached.Evaluate(ctx, tree, root, domain.DefaultConstraint)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		if first == nil {
			first = a
		}
		assert.Equal(t, first, a, "evaluation must be deterministic")
	}
	assert.Equal(t, []string{"the fraction", "1", "over", "2", "equals", "0.5"}, domain.Texts(first))
}

func TestEngine_CacheHitsAndDisabled(t *testing.T) {
	ctx := context.Background()
	tree := fractionTree(t)

	cache := newCounting(t)
	eng := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(cache))
	require.NoError(t, eng.LoadRules(ctx, fractionRules()...))

	_, err := eng.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)
	assert.Equal(t, 3, cache.puts)

	_, err = eng.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits, "root should be served from cache")

	off := newCounting(t)
	disabled := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(off), runtime.WithCacheEnabled(false))
	require.NoError(t, disabled.LoadRules(ctx, fractionRules()...))
	for i := 0; i < 2; i++ {
		_, err := disabled.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, off.hits)
	assert.Equal(t, 0, off.puts)
	assert.False(t, disabled.CacheEnabled())
}

func TestEngine_ReloadInvalidates(t *testing.T) {
	ctx := context.Background()
	tree := fractionTree(t)
	cache := newCounting(t)
	eng := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(cache))
	require.NoError(t, eng.LoadRules(ctx, fractionRules()...))

	seq, err := eng.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Equal(t, "the fraction", seq[0].Text)

	replaced := fractionRules()
	replaced[0].Action[0] = domain.Literal("fraction")
	require.NoError(t, eng.LoadRules(ctx, replaced...))
	assert.Equal(t, 2, cache.clears)
	assert.Equal(t, 0, cache.Len())

	seq, err = eng.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Equal(t, "fraction", seq[0].Text)
}

// staleCache ignores Clear, like a shared backend another replica refilled.
type staleCache struct{ *memory.Cache }

func (staleCache) Clear(context.Context) error { return errors.New("clear not permitted") }

func TestEngine_GenerationGuardsSharedCache(t *testing.T) {
	ctx := context.Background()
	tree := fractionTree(t)
	inner, err := memory.NewCache(0)
	require.NoError(t, err)
	eng := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(staleCache{inner}))
	require.NoError(t, eng.LoadRules(ctx, fractionRules()...))

	_, err = eng.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
	require.NoError(t, err)

	replaced := fractionRules()
	replaced[1].Action = []domain.Component{domain.Literal("n")}
	require.NoError(t, eng.LoadRules(ctx, replaced...))

	seq, err := eng.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Equal(t, []string{"the fraction", "n", "over", "n"}, domain.Texts(seq))
}

func TestEngine_CacheErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	cache := newCounting(t)
	cache.failGet = true
	eng := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(cache))
	require.NoError(t, eng.LoadRules(ctx, fractionRules()...))

	tree := fractionTree(t)
	seq, err := eng.Evaluate(ctx, tree, tree.Root(), domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Len(t, seq, 4)
}

func TestEngine_CacheKeysDoNotCollideAcrossTrees(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	require.NoError(t, eng.LoadRules(ctx, fractionRules()...))

	a := domain.NewTree()
	a.Add(domain.KindNumber, "", "1", nil)
	b := domain.NewTree()
	b.Add(domain.KindNumber, "", "2", nil)

	seqA, err := eng.Evaluate(ctx, a, 0, domain.DefaultConstraint)
	require.NoError(t, err)
	seqB, err := eng.Evaluate(ctx, b, 0, domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, domain.Texts(seqA))
	assert.Equal(t, []string{"2"}, domain.Texts(seqB))
}

func TestEngine_CacheTransparencyAcrossConstraints(t *testing.T) {
	ctx := context.Background()
	rules := append(fractionRules(),
		domain.Rule{
			Name:       "fraction-terse",
			Constraint: domain.Constraint{Domain: domain.DefaultDomain, Style: "terse"},
			Query:      domain.Query{Kind: domain.KindFraction},
			Action:     []domain.Component{domain.Recurse(domain.Child(0)), domain.Literal("over"), domain.Recurse(domain.Child(1))},
		},
		domain.Rule{
			Name:       "identifier-clearspeak",
			Constraint: domain.Constraint{Domain: "clearspeak", Style: domain.DefaultStyle},
			Query:      domain.Query{Kind: domain.KindIdentifier},
			Action:     []domain.Component{domain.ContentOf()},
		},
		domain.Rule{
			Name:       "fraction-clearspeak-brief",
			Constraint: domain.Constraint{Domain: "clearspeak", Style: "brief"},
			Query:      domain.Query{Kind: domain.KindFraction},
			Action:     []domain.Component{domain.Recurse(domain.Child(0)), domain.Literal("by"), domain.Recurse(domain.Child(1))},
		},
	)

	cached := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(newCounting(t)))
	uncached := runtime.NewEngine(rulebase.New(), runtime.WithResultCache(newCounting(t)), runtime.WithCacheEnabled(false))
	require.NoError(t, cached.LoadRules(ctx, rules...))
	require.NoError(t, uncached.LoadRules(ctx, rules...))

	tree := fractionTree(t)
	requests := []domain.Constraint{
		{Domain: "clearspeak", Style: "terse"},
		{Domain: "clearspeak", Style: "default"},
		{Domain: "clearspeak", Style: "brief"},
		{Domain: "default", Style: "terse"},
		{Domain: "clearspeak", Style: "terse"},
		{},
		{Domain: "clearspeak", Style: "default"},
		{Domain: "nemeth", Style: "terse"},
		{Domain: "clearspeak", Style: "brief"},
	}
	for _, req := range requests {
		want, err := uncached.Evaluate(ctx, tree, tree.Root(), req)
		require.NoError(t, err)
		got, err := cached.Evaluate(ctx, tree, tree.Root(), req)
		require.NoError(t, err)
		assert.Equal(t, want, got, "request %s", req)
	}

	seq, err := cached.Evaluate(ctx, tree, tree.Root(), domain.Constraint{Domain: "clearspeak", Style: "default"})
	require.NoError(t, err)
	assert.Equal(t, []string{"the fraction", "1", "over", "2"}, domain.Texts(seq))
	seq, err = cached.Evaluate(ctx, tree, tree.Root(), domain.Constraint{Domain: "clearspeak", Style: "terse"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "over", "2"}, domain.Texts(seq))
}
