// Package history keeps an audit trail of check runs in a sqlite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver for database/sql
)

// Run is one recorded check run.
type Run struct {
	ID          int64
	RunID       string
	Repo        string
	StartedAt   time.Time
	CompletedAt time.Time
	Uncollected int
	Stale       int
	Unknown     int
	Current     int
	Errors      int
}

// Open opens the history database at dbPath, creating it and its schema as
// needed.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(context.Background(), p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", p, err)
		}
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    repo TEXT NOT NULL,
    started_at TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    uncollected INTEGER NOT NULL,
    stale INTEGER NOT NULL,
    unknown INTEGER NOT NULL,
    current INTEGER NOT NULL,
    errors INTEGER NOT NULL
);`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Record appends a run to the trail.
func Record(db *sql.DB, run Run) error {
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO runs (run_id, repo, started_at, completed_at, uncollected, stale, unknown, current, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Repo,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.CompletedAt.UTC().Format(time.RFC3339),
		run.Uncollected, run.Stale, run.Unknown, run.Current, run.Errors)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func Recent(db *sql.DB, limit int) ([]Run, error) {
	rows, err := db.QueryContext(context.Background(),
		`SELECT id, run_id, repo, started_at, completed_at, uncollected, stale, unknown, current, errors
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, completed string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Repo, &started, &completed,
			&r.Uncollected, &r.Stale, &r.Unknown, &r.Current, &r.Errors); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", started, err)
		}
		if r.CompletedAt, err = time.Parse(time.RFC3339, completed); err != nil {
			return nil, fmt.Errorf("parse completed_at %q: %w", completed, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
