package store

import (
	"database/sql"
	"time"

	"docweave/internal/api"
)

// RepoFileStore persists raw ingested source content keyed by
// (repoName, path) (spec.md §3 "RepoFile").
type RepoFileStore struct {
	db *sql.DB
}

// NewRepoFileStore wraps db. db may be nil; every method then returns a
// storage_unavailable error.
func NewRepoFileStore(db *sql.DB) *RepoFileStore {
	return &RepoFileStore{db: db}
}

func (s *RepoFileStore) unavailable() error {
	return api.New(api.KindStorageUnavailable, "repo file store is not configured")
}

// Upsert inserts or replaces the file at (repoName, path). content may be
// nil when the file was too large to fetch or fetching otherwise failed
// (spec.md §3 "size ≤ 5 MiB or content is null").
func (s *RepoFileStore) Upsert(repoName, path, fileName string, size int64, contentIdentity string, content []byte) error {
	if s.db == nil {
		return s.unavailable()
	}
	_, err := s.db.Exec(`
		INSERT INTO repo_files (repo_name, path, file_name, size, content_identity, content, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_name, path) DO UPDATE SET
			file_name = excluded.file_name,
			size = excluded.size,
			content_identity = excluded.content_identity,
			content = excluded.content,
			updated_at = excluded.updated_at
	`, repoName, path, fileName, size, contentIdentity, content, time.Now().UTC())
	if err != nil {
		return api.Wrap(api.KindStorageUnavailable, "upserting repo file", err)
	}
	return nil
}

// Delete removes a single file entry.
func (s *RepoFileStore) Delete(repoName, path string) error {
	if s.db == nil {
		return s.unavailable()
	}
	_, err := s.db.Exec(`DELETE FROM repo_files WHERE repo_name = ? AND path = ?`, repoName, path)
	if err != nil {
		return api.Wrap(api.KindStorageUnavailable, "deleting repo file", err)
	}
	return nil
}
