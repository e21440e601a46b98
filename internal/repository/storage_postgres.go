package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a Storage backed by the client_storage table
func NewPostgresStorage(db *sql.DB) Storage {
	return &postgresStorage{db: db}
}

// Get retrieves a value by key using parameterized queries
func (r *postgresStorage) Get(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value
		FROM client_storage
		WHERE key = $1
	`

	var value string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read storage key: %w", err)
	}

	return value, nil
}

// Set upserts a value
func (r *postgresStorage) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO client_storage (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write storage key: %w", err)
	}

	return nil
}

// Delete removes the given keys; missing keys are ignored
func (r *postgresStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query := `DELETE FROM client_storage WHERE key = ANY($1)`

	if _, err := r.db.ExecContext(ctx, query, keys); err != nil {
		return fmt.Errorf("failed to delete storage keys: %w", err)
	}

	return nil
}
