// Package storage archives simulation runs in SQLite so schedules can be
// compared across parameter changes.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const defaultBatchMax = 500

// DB wraps the archive database. SQLite works best with a single write
// connection; the pool is capped accordingly.
type DB struct {
	db       *sql.DB
	batchMax int
}

// New opens (or creates) the archive at path and applies migrations.
// batchMax caps events per insert statement; 0 means the default.
func New(ctx context.Context, path string, batchMax int) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if batchMax <= 0 {
		batchMax = defaultBatchMax
	}
	return &DB{db: db, batchMax: batchMax}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			start_day DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			horizon_days INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			stall_count INTEGER NOT NULL,
			late_count INTEGER NOT NULL,
			utilization REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS production_events (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			resource_id TEXT NOT NULL,
			resource_name TEXT NOT NULL,
			bid_hours REAL NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_run ON production_events(run_id, start_at)`,

		`CREATE TABLE IF NOT EXISTS stalls (
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			at DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}
