package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/mathspeak/pkg/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of entries kept by NewCache when size <= 0.
const DefaultCacheSize = 4096

// Cache implements ports.ResultCache with a bounded in-process LRU.
// Safe for concurrent use.
type Cache struct {
	entries *lru.Cache[domain.CacheKey, []domain.Description]
}

// NewCache creates a cache holding at most size entries.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[domain.CacheKey, []domain.Description](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get returns a copy of the stored sequence.
func (c *Cache) Get(ctx context.Context, key domain.CacheKey) ([]domain.Description, bool, error) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return domain.CloneDescriptions(v), true, nil
}

// Put stores a copy of value so later changes by the caller are not observed.
func (c *Cache) Put(ctx context.Context, key domain.CacheKey, value []domain.Description) error {
	stored := domain.CloneDescriptions(value)
	if stored == nil {
		stored = []domain.Description{}
	}
	c.entries.Add(key, stored)
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.entries.Purge()
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
