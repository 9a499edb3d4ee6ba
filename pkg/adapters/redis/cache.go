package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aretw0/mathspeak/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Cache implements ports.ResultCache using Redis.
// Keys embed the rule-base generation so replicas sharing one Redis never read
// results computed under another rule set.
type Cache struct {
	client    *backend.Client
	prefix    string
	ttl       time.Duration
	scanBatch int64
}

type Option func(*Cache)

// WithTTL sets the expiration for cached entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix for cached entries.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a new Redis cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	c := &Cache{
		client:    client,
		prefix:    "mathspeak:cache:",
		ttl:       0, // No expiration by default
		scanBatch: 256,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// key joins the fields with ':'; free-form segments are escaped so the join is
// one-to-one.
func (c *Cache) key(k domain.CacheKey) string {
	return fmt.Sprintf("%s%d:%s:%s:%s:%d", c.prefix, k.Generation,
		url.QueryEscape(k.Constraint.Domain), url.QueryEscape(k.Constraint.Style), url.QueryEscape(k.Tree), k.Node)
}

// Get retrieves a cached sequence.
func (c *Cache) Get(ctx context.Context, key domain.CacheKey) ([]domain.Description, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}

	var seq []domain.Description
	if err := json.Unmarshal(val, &seq); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal descriptions: %w", err)
	}
	if seq == nil {
		seq = []domain.Description{}
	}
	return seq, true, nil
}

// Put stores a sequence as JSON.
func (c *Cache) Put(ctx context.Context, key domain.CacheKey, value []domain.Description) error {
	if value == nil {
		value = []domain.Description{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal descriptions: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (c *Cache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", c.scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
