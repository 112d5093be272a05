// Package store persists usage snapshots, refresh runs and the offline
// pricing cache in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhaobenny/claudelytics/internal/apperr"
)

// DefaultFileName is the database file under the user's home directory
const DefaultFileName = ".claudelytics.db"

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// DefaultPath returns ~/.claudelytics.db
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, DefaultFileName)
}

// Open opens a SQLite database, creating its directory if needed
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.WithPath(apperr.KindIO, "create store directory", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, apperr.WithPath(apperr.KindIO, "open store", dbPath, err)
	}

	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA foreign_keys = ON", "enable foreign keys"},
		{"PRAGMA journal_mode = WAL", "enable WAL mode"},
		// The refresh service and interactive commands may write at once
		{"PRAGMA busy_timeout = 5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, apperr.WithPath(apperr.KindIO, p.what, dbPath, err)
		}
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &DB{db}, nil
}

// OpenMigrated opens the database and brings its schema up to date
func OpenMigrated(dbPath string) (*DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, apperr.WithPath(apperr.KindIO, "migrate store", dbPath, err)
	}
	return db, nil
}

// Migrate creates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_summary (
		period_type TEXT NOT NULL,
		period_key TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cache_creation_tokens INTEGER NOT NULL,
		cache_read_tokens INTEGER NOT NULL,
		cost REAL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (period_type, period_key)
	);

	CREATE INDEX IF NOT EXISTS idx_summary_type ON usage_summary(period_type);

	CREATE TABLE IF NOT EXISTS refresh_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ran_at TIMESTAMP NOT NULL,
		fingerprint TEXT NOT NULL,
		files INTEGER NOT NULL,
		events INTEGER NOT NULL,
		cost REAL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pricing_cache (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version TEXT NOT NULL,
		saved_at TIMESTAMP NOT NULL,
		data TEXT NOT NULL
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
