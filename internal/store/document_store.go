package store

import (
	"database/sql"
	"time"

	"docweave/internal/api"
)

// Document is a single generated markdown file, as returned by
// DocumentStore.List.
type Document struct {
	Path    string
	Content string
}

// DocumentStore persists generated markdown keyed by (repoName, path)
// (spec.md §4.4).
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore wraps db. db may be nil; every method then returns a
// storage_unavailable error.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) unavailable() error {
	return api.New(api.KindStorageUnavailable, "document store is not configured")
}

// Upsert inserts or replaces the document at (repoName, path). content is
// stored verbatim as received from the analyzer (spec.md §4.4 invariant).
func (s *DocumentStore) Upsert(repoName, path, content string) error {
	if s.db == nil {
		return s.unavailable()
	}
	_, err := s.db.Exec(`
		INSERT INTO repo_documents (repo_name, path, content, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (repo_name, path) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at
	`, repoName, path, content, time.Now().UTC())
	if err != nil {
		return api.Wrap(api.KindStorageUnavailable, "upserting document", err)
	}
	return nil
}

// Delete removes a single document entry. Deleting an entry that does not
// exist is not an error.
func (s *DocumentStore) Delete(repoName, path string) error {
	if s.db == nil {
		return s.unavailable()
	}
	_, err := s.db.Exec(`DELETE FROM repo_documents WHERE repo_name = ? AND path = ?`, repoName, path)
	if err != nil {
		return api.Wrap(api.KindStorageUnavailable, "deleting document", err)
	}
	return nil
}

// ExistsAny reports whether repoName has at least one document, used by
// the Status Reconciler (spec.md §4.10).
func (s *DocumentStore) ExistsAny(repoName string) (bool, error) {
	if s.db == nil {
		return false, s.unavailable()
	}
	var count int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM repo_documents WHERE repo_name = ?`, repoName).Scan(&count)
	if err != nil {
		return false, api.Wrap(api.KindStorageUnavailable, "checking document existence", err)
	}
	return count > 0, nil
}

// List returns every document for repoName, ordered by path.
func (s *DocumentStore) List(repoName string) ([]Document, error) {
	if s.db == nil {
		return nil, s.unavailable()
	}
	rows, err := s.db.Query(`SELECT path, content FROM repo_documents WHERE repo_name = ? ORDER BY path`, repoName)
	if err != nil {
		return nil, api.Wrap(api.KindStorageUnavailable, "listing documents", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Path, &d.Content); err != nil {
			return nil, api.Wrap(api.KindStorageUnavailable, "scanning document row", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
