package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type prefsRepository struct {
	db *sql.DB
}

// NewPrefsRepository creates a new preferences repository
func NewPrefsRepository(db *sql.DB) PrefsStore {
	return &prefsRepository{db: db}
}

// Get returns the stored value, or "" when the key is absent
func (r *prefsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM bo_prefs WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference %q: %w", key, err)
	}
	return value, nil
}

// Set stores or replaces a preference
func (r *prefsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO bo_prefs (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set preference %q: %w", key, err)
	}
	return nil
}

// Delete removes a preference; deleting an absent key is not an error
func (r *prefsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bo_prefs WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete preference %q: %w", key, err)
	}
	return nil
}
