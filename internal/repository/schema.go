package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is written to work unchanged on both SQLite and Postgres.
// Timestamps are stored as RFC3339 UTC text so string comparison orders
// them correctly on either engine.
const schema = `
CREATE TABLE IF NOT EXISTS bo_recipients (
	uuid TEXT PRIMARY KEY,
	phone TEXT NOT NULL,
	first_name TEXT,
	last_name TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	position INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bo_prefs (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// InitSchema creates the tables if they do not exist yet. SQLite
// databases bootstrap themselves this way on open; the Postgres profile
// runs the same statements.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Open opens the recipient database for the given driver and applies the
// schema. SQLite prefers a single writer, so the pool is pinned to one
// connection for that driver.
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		_, _ = db.Exec("PRAGMA journal_mode = WAL")
		_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
