package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryCatalog implements Catalog using in-memory maps. It backs the unit
// tests and local development without a database. Thread-safe with RWMutex.
type InMemoryCatalog struct {
	products   map[int64]Product
	meta       map[int64]map[string]string
	categories map[int64][]int64
	mu         sync.RWMutex
}

// NewInMemoryCatalog creates an empty in-memory catalog.
func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		products:   make(map[int64]Product),
		meta:       make(map[int64]map[string]string),
		categories: make(map[int64][]int64),
	}
}

// AddProduct inserts or replaces a product.
func (c *InMemoryCatalog) AddProduct(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[p.ID] = p
	if _, ok := c.meta[p.ID]; !ok {
		c.meta[p.ID] = make(map[string]string)
	}
}

// SetCategories assigns the category IDs a product belongs to.
func (c *InMemoryCatalog) SetCategories(productID int64, categoryIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.categories[productID] = append([]int64(nil), categoryIDs...)
}

// SetStockStatus updates a product's stock status in place.
func (c *InMemoryCatalog) SetStockStatus(productID int64, status StockStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[productID]
	if !ok {
		return fmt.Errorf("product %d not found", productID)
	}
	p.StockStatus = status
	c.products[productID] = p
	return nil
}

// ListProducts returns a page of matching products ordered by ID ascending.
// The ordering is stable across calls, which offset paging depends on.
func (c *InMemoryCatalog) ListProducts(ctx context.Context, q Query) ([]Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []Product
	for _, p := range c.products {
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if q.StockStatus != "" && p.StockStatus != q.StockStatus {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Categories returns the category IDs for a product.
func (c *InMemoryCatalog) Categories(ctx context.Context, productID int64) ([]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]int64(nil), c.categories[productID]...), nil
}

// GetMeta reads a meta value.
func (c *InMemoryCatalog) GetMeta(ctx context.Context, productID int64, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.meta[productID]
	if !ok {
		return "", false, nil
	}
	v, ok := m[key]
	return v, ok, nil
}

// SetMeta writes a meta value.
func (c *InMemoryCatalog) SetMeta(ctx context.Context, productID int64, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.meta[productID]
	if !ok {
		m = make(map[string]string)
		c.meta[productID] = m
	}
	m[key] = value
	return nil
}

// DeleteMeta removes a meta key.
func (c *InMemoryCatalog) DeleteMeta(ctx context.Context, productID int64, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.meta[productID]; ok {
		delete(m, key)
	}
	return nil
}

// ListOutOfStockWithAnyMeta returns published, out-of-stock product IDs
// carrying at least one of the given meta keys, ordered by ID ascending.
func (c *InMemoryCatalog) ListOutOfStockWithAnyMeta(ctx context.Context, keys ...string) ([]int64, error) {
	return c.listWithAnyMeta(StockOutOfStock, keys)
}

// ListInStockWithAnyMeta returns published, in-stock product IDs carrying at
// least one of the given meta keys, ordered by ID ascending.
func (c *InMemoryCatalog) ListInStockWithAnyMeta(ctx context.Context, keys ...string) ([]int64, error) {
	return c.listWithAnyMeta(StockInStock, keys)
}

func (c *InMemoryCatalog) listWithAnyMeta(stock StockStatus, keys []string) ([]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []int64
	for id, p := range c.products {
		if p.Status != StatusPublished || p.StockStatus != stock {
			continue
		}
		m := c.meta[id]
		for _, key := range keys {
			if _, ok := m[key]; ok {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CountInStock counts published, in-stock products.
func (c *InMemoryCatalog) CountInStock(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, p := range c.products {
		if p.Status == StatusPublished && p.StockStatus == StockInStock {
			count++
		}
	}
	return count, nil
}

// CountInStockWithMetaValue counts published, in-stock products whose meta
// key equals value.
func (c *InMemoryCatalog) CountInStockWithMetaValue(ctx context.Context, key, value string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for id, p := range c.products {
		if p.Status != StatusPublished || p.StockStatus != StockInStock {
			continue
		}
		if v, ok := c.meta[id][key]; ok && v == value {
			count++
		}
	}
	return count, nil
}
