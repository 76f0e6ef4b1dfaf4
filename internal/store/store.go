// Package store implements the relational persistence layer: the Status
// Store (C3), Document Store (C4), and the Repository/RepoFile tables that
// back the Orchestrator and Ingestor.
//
// The backing engine is SQLite via the pure-Go, cgo-free modernc.org/sqlite
// driver, accessed through database/sql. When no DSN is configured, Open
// returns a nil *sql.DB and every store degrades instead of panicking: the
// Repository, RepoFile and Document stores return storage_unavailable
// errors, and the Status Store logs Set calls and answers Get with an error
// status (spec.md §6).
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
	user_id TEXT NOT NULL,
	provider_repo_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	full_name TEXT NOT NULL,
	html_url TEXT NOT NULL,
	webhook_id INTEGER,
	webhook_error TEXT,
	status TEXT NOT NULL DEFAULT 'not_started',
	progress INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT '',
	merkle_root TEXT NOT NULL DEFAULT '',
	last_updated TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, provider_repo_id)
);

CREATE TABLE IF NOT EXISTS repo_files (
	repo_name TEXT NOT NULL,
	path TEXT NOT NULL,
	file_name TEXT NOT NULL,
	size INTEGER NOT NULL,
	content_identity TEXT NOT NULL,
	content BLOB,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (repo_name, path)
);

CREATE TABLE IF NOT EXISTS repo_documents (
	repo_name TEXT NOT NULL,
	path TEXT NOT NULL,
	content TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (repo_name, path)
);
`

// Open connects to dsn and ensures the schema exists. An empty dsn is not
// an error: it returns (nil, nil), and each store type built on it treats a
// nil *sql.DB as "not configured".
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, matches SQLite's own concurrency model

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return db, nil
}
