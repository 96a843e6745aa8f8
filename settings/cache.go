package settings

import (
	"context"
	"sync"
	"time"

	"github.com/liamcoop/autodiscounts/discount"
)

// CacheConfig holds configuration for the snapshot cache.
type CacheConfig struct {
	// TTL is the time-to-live for a cached snapshot. Zero means no
	// expiration, invalidation only on mutations.
	TTL time.Duration
}

// DefaultCacheConfig returns the default cache behavior: no TTL, invalidate
// on mutation.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// Cache wraps a Store with an in-memory snapshot of the rule list and the
// excluded category set. A pass reading through the cache sees one coherent
// snapshot; saving configuration invalidates the cache so the next pass
// picks up the change. Satisfies discount.ConfigSource and
// discount.Invalidator. Thread-safe.
type Cache struct {
	store    *Store
	config   CacheConfig
	rules    []discount.Rule
	excluded []int64
	cachedAt time.Time
	valid    bool
	mu       sync.RWMutex
}

// NewCache creates a snapshot cache over a Store.
func NewCache(store *Store, config CacheConfig) *Cache {
	return &Cache{store: store, config: config}
}

// Rules returns the cached rule list, loading a fresh snapshot on miss.
func (c *Cache) Rules(ctx context.Context) ([]discount.Rule, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]discount.Rule(nil), c.rules...), nil
}

// ExcludedCategories returns the cached exclusion set, loading a fresh
// snapshot on miss.
func (c *Cache) ExcludedCategories(ctx context.Context) ([]int64, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int64(nil), c.excluded...), nil
}

// Invalidate clears the cached snapshot, forcing a reload on next read.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.rules = nil
	c.excluded = nil
}

func (c *Cache) ensure(ctx context.Context) error {
	c.mu.RLock()
	ok := c.valid && (c.config.TTL == 0 || time.Since(c.cachedAt) <= c.config.TTL)
	c.mu.RUnlock()
	if ok {
		return nil
	}

	rules, err := c.store.Rules(ctx)
	if err != nil {
		return err
	}
	excluded, err := c.store.ExcludedCategories(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.rules = rules
	c.excluded = excluded
	c.cachedAt = time.Now()
	c.valid = true
	c.mu.Unlock()
	return nil
}
