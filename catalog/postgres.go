package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// PostgresCatalog implements Catalog backed by PostgreSQL, using the
// products / product_meta / product_categories schema from migrations/.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog creates a PostgreSQL-backed catalog.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// ListProducts returns one page of products ordered by ID ascending.
func (c *PostgresCatalog) ListProducts(ctx context.Context, q Query) ([]Product, error) {
	query := `
		SELECT id, name, status, stock_status, created_at, edit_link
		FROM products
		WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR stock_status = $2)
		ORDER BY id ASC
		LIMIT $3 OFFSET $4`

	rows, err := c.db.QueryContext(ctx, query, string(q.Status), string(q.StockStatus), q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var link sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.StockStatus, &p.CreatedAt, &link); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.EditLink = link.String
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// Categories returns the category IDs a product belongs to.
func (c *PostgresCatalog) Categories(ctx context.Context, productID int64) ([]int64, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT category_id FROM product_categories WHERE product_id = $1 ORDER BY category_id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for product %d: %w", productID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return ids, nil
}

// GetMeta reads a meta value.
func (c *PostgresCatalog) GetMeta(ctx context.Context, productID int64, key string) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `
		SELECT meta_value FROM product_meta WHERE product_id = $1 AND meta_key = $2
	`, productID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %q for product %d: %w", key, productID, err)
	}
	return value, true, nil
}

// SetMeta writes a meta value, replacing any existing value.
func (c *PostgresCatalog) SetMeta(ctx context.Context, productID int64, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO product_meta (product_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value
	`, productID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %q for product %d: %w", key, productID, err)
	}
	return nil
}

// DeleteMeta removes a meta key.
func (c *PostgresCatalog) DeleteMeta(ctx context.Context, productID int64, key string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM product_meta WHERE product_id = $1 AND meta_key = $2
	`, productID, key)
	if err != nil {
		return fmt.Errorf("failed to delete meta %q for product %d: %w", key, productID, err)
	}
	return nil
}

// ListOutOfStockWithAnyMeta returns published, out-of-stock product IDs
// carrying at least one of the given meta keys.
func (c *PostgresCatalog) ListOutOfStockWithAnyMeta(ctx context.Context, keys ...string) ([]int64, error) {
	return c.listWithAnyMeta(ctx, StockOutOfStock, keys)
}

// ListInStockWithAnyMeta returns published, in-stock product IDs carrying at
// least one of the given meta keys.
func (c *PostgresCatalog) ListInStockWithAnyMeta(ctx context.Context, keys ...string) ([]int64, error) {
	return c.listWithAnyMeta(ctx, StockInStock, keys)
}

func (c *PostgresCatalog) listWithAnyMeta(ctx context.Context, stock StockStatus, keys []string) ([]int64, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(keys))
	args := []any{string(stock)}
	for i, key := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, key)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT p.id
		FROM products p
		JOIN product_meta pm ON p.id = pm.product_id AND pm.meta_key IN (%s)
		WHERE p.status = 'publish' AND p.stock_status = $1
		ORDER BY p.id ASC`, strings.Join(placeholders, ", "))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products by meta: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product ids: %w", err)
	}
	return ids, nil
}

// CountInStock counts published, in-stock products.
func (c *PostgresCatalog) CountInStock(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE status = 'publish' AND stock_status = 'instock'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count in-stock products: %w", err)
	}
	return count, nil
}

// CountInStockWithMetaValue counts published, in-stock products whose meta
// key equals value.
func (c *PostgresCatalog) CountInStockWithMetaValue(ctx context.Context, key, value string) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT p.id)
		FROM products p
		JOIN product_meta pm ON p.id = pm.product_id AND pm.meta_key = $1 AND pm.meta_value = $2
		WHERE p.status = 'publish' AND p.stock_status = 'instock'
	`, key, value).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products by meta: %w", err)
	}
	return count, nil
}
