package settings

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresOptions implements OptionStore backed by the settings table.
type PostgresOptions struct {
	db *sql.DB
}

// NewPostgresOptions creates a PostgreSQL-backed option store.
func NewPostgresOptions(db *sql.DB) *PostgresOptions {
	return &PostgresOptions{db: db}
}

// Get reads an option.
func (o *PostgresOptions) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := o.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = $1
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes an option.
func (o *PostgresOptions) Set(ctx context.Context, key string, value []byte) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}
