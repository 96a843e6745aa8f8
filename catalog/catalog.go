package catalog

import (
	"context"
	"time"
)

// Status is a product publication status.
type Status string

// StockStatus is a product stock status.
type StockStatus string

const (
	StatusPublished Status = "publish"
	StatusDraft     Status = "draft"

	StockInStock     StockStatus = "instock"
	StockOutOfStock  StockStatus = "outofstock"
	StockOnBackorder StockStatus = "onbackorder"
)

// Product is a catalog product as the engine sees it. Prices, the exclusion
// flag and discount provenance live in per-product meta, not on the struct.
type Product struct {
	ID          int64
	Name        string
	Status      Status
	StockStatus StockStatus
	// CreatedAt is the original listing date, used as the fallback source
	// when no creation-date fact has been persisted yet.
	CreatedAt time.Time
	EditLink  string
}

// Query selects a page of products.
type Query struct {
	Status      Status
	StockStatus StockStatus
	Limit       int
	Offset      int
}

// Catalog abstracts the external product store as a paged product query plus
// a key-value meta store per product. Implementations must return pages in a
// stable order so that offset paging within one pass never skips or repeats
// a product.
type Catalog interface {
	// ListProducts returns one page of products matching the query.
	ListProducts(ctx context.Context, q Query) ([]Product, error)

	// Categories returns the category IDs a product belongs to.
	Categories(ctx context.Context, productID int64) ([]int64, error)

	// GetMeta reads a meta value. The second return is false when the key
	// is absent for the product.
	GetMeta(ctx context.Context, productID int64, key string) (string, bool, error)

	// SetMeta writes a meta value, replacing any existing value.
	SetMeta(ctx context.Context, productID int64, key, value string) error

	// DeleteMeta removes a meta key. Deleting an absent key is not an error.
	DeleteMeta(ctx context.Context, productID int64, key string) error

	// ListOutOfStockWithAnyMeta returns IDs of published, out-of-stock
	// products carrying at least one of the given meta keys.
	ListOutOfStockWithAnyMeta(ctx context.Context, keys ...string) ([]int64, error)

	// ListInStockWithAnyMeta returns IDs of published, in-stock products
	// carrying at least one of the given meta keys.
	ListInStockWithAnyMeta(ctx context.Context, keys ...string) ([]int64, error)

	// CountInStock counts published, in-stock products.
	CountInStock(ctx context.Context) (int, error)

	// CountInStockWithMetaValue counts published, in-stock products whose
	// meta key equals value.
	CountInStockWithMetaValue(ctx context.Context, key, value string) (int, error)
}
