package store

import (
	"database/sql"
	"errors"
	"time"

	"docweave/internal/api"
)

// Repository is a persisted row of the repositories table, owned jointly by
// the Orchestrator (status fields during generation) and the Status
// Reconciler (the narrow complete-correction right described in spec.md
// §3 "Ownership").
type Repository struct {
	UserID         string
	ProviderRepoID int64
	Name           string
	FullName       string
	HTMLURL        string
	WebhookID      sql.NullInt64
	WebhookError   sql.NullString
	Status         Status
	Progress       int
	Message        string
	MerkleRoot     string
	LastUpdated    time.Time
	CreatedAt      time.Time
}

// RepositoryStore persists Repository rows.
type RepositoryStore struct {
	db *sql.DB
}

// NewRepositoryStore wraps db. db may be nil; every method then returns a
// storage_unavailable error.
func NewRepositoryStore(db *sql.DB) *RepositoryStore {
	return &RepositoryStore{db: db}
}

func (s *RepositoryStore) unavailable() error {
	return api.New(api.KindStorageUnavailable, "repository store is not configured")
}

// Get returns the existing Repository for (userID, providerRepoID), or
// (Repository{}, false, nil) if none exists.
func (s *RepositoryStore) Get(userID string, providerRepoID int64) (Repository, bool, error) {
	if s.db == nil {
		return Repository{}, false, s.unavailable()
	}

	var r Repository
	row := s.db.QueryRow(`
		SELECT user_id, provider_repo_id, name, full_name, html_url,
		       webhook_id, webhook_error, status, progress, message,
		       merkle_root, last_updated, created_at
		FROM repositories WHERE user_id = ? AND provider_repo_id = ?
	`, userID, providerRepoID)

	var statusStr string
	err := row.Scan(&r.UserID, &r.ProviderRepoID, &r.Name, &r.FullName, &r.HTMLURL,
		&r.WebhookID, &r.WebhookError, &statusStr, &r.Progress, &r.Message,
		&r.MerkleRoot, &r.LastUpdated, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, false, nil
	}
	if err != nil {
		return Repository{}, false, api.Wrap(api.KindStorageUnavailable, "querying repository", err)
	}
	r.Status = Status(statusStr)
	return r, true, nil
}

// Insert creates a new Repository row with status = not_started. Callers
// must have already confirmed via Get that no row exists for this
// (userID, providerRepoID) — selectRepo's idempotence (spec.md §4.9) is
// enforced by the Orchestrator, not by a unique-constraint race here.
func (s *RepositoryStore) Insert(r Repository) error {
	if s.db == nil {
		return s.unavailable()
	}

	now := time.Now().UTC()
	r.Status = StatusNotStarted
	r.LastUpdated = now
	r.CreatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO repositories
			(user_id, provider_repo_id, name, full_name, html_url,
			 webhook_id, webhook_error, status, progress, message,
			 merkle_root, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.UserID, r.ProviderRepoID, r.Name, r.FullName, r.HTMLURL,
		r.WebhookID, r.WebhookError, string(r.Status), r.Progress, r.Message,
		r.MerkleRoot, r.LastUpdated, r.CreatedAt)
	if err != nil {
		return api.Wrap(api.KindStorageUnavailable, "inserting repository", err)
	}
	return nil
}

// SetWebhook records the outcome of a registerWebhook attempt. Exactly one
// of webhookID or webhookErr should be set (spec.md §3 invariant "if
// webhook id is non-null then webhook error is null").
func (s *RepositoryStore) SetWebhook(name string, webhookID *int64, webhookErr string) error {
	if s.db == nil {
		return s.unavailable()
	}

	var id sql.NullInt64
	if webhookID != nil {
		id = sql.NullInt64{Int64: *webhookID, Valid: true}
	}
	var errStr sql.NullString
	if webhookErr != "" {
		errStr = sql.NullString{String: webhookErr, Valid: true}
	}

	_, err := s.db.Exec(`
		UPDATE repositories SET webhook_id = ?, webhook_error = ? WHERE name = ?
	`, id, errStr, name)
	if err != nil {
		return api.Wrap(api.KindStorageUnavailable, "updating webhook state", err)
	}
	return nil
}

// SetMerkleRoot persists the root hash of the most recent commitment.
func (s *RepositoryStore) SetMerkleRoot(name, root string) error {
	if s.db == nil {
		return s.unavailable()
	}
	_, err := s.db.Exec(`UPDATE repositories SET merkle_root = ? WHERE name = ?`, root, name)
	if err != nil {
		return api.Wrap(api.KindStorageUnavailable, "updating merkle root", err)
	}
	return nil
}

// List returns every Repository row owned by userID, ordered by name.
func (s *RepositoryStore) List(userID string) ([]Repository, error) {
	if s.db == nil {
		return nil, s.unavailable()
	}

	rows, err := s.db.Query(`
		SELECT user_id, provider_repo_id, name, full_name, html_url,
		       webhook_id, webhook_error, status, progress, message,
		       merkle_root, last_updated, created_at
		FROM repositories WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, api.Wrap(api.KindStorageUnavailable, "listing repositories", err)
	}
	defer rows.Close()

	var out []Repository
	for rows.Next() {
		var r Repository
		var statusStr string
		if err := rows.Scan(&r.UserID, &r.ProviderRepoID, &r.Name, &r.FullName, &r.HTMLURL,
			&r.WebhookID, &r.WebhookError, &statusStr, &r.Progress, &r.Message,
			&r.MerkleRoot, &r.LastUpdated, &r.CreatedAt); err != nil {
			return nil, api.Wrap(api.KindStorageUnavailable, "scanning repository row", err)
		}
		r.Status = Status(statusStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetByName returns the Repository row with the given short name.
func (s *RepositoryStore) GetByName(name string) (Repository, bool, error) {
	if s.db == nil {
		return Repository{}, false, s.unavailable()
	}

	var r Repository
	var statusStr string
	row := s.db.QueryRow(`
		SELECT user_id, provider_repo_id, name, full_name, html_url,
		       webhook_id, webhook_error, status, progress, message,
		       merkle_root, last_updated, created_at
		FROM repositories WHERE name = ?
	`, name)
	err := row.Scan(&r.UserID, &r.ProviderRepoID, &r.Name, &r.FullName, &r.HTMLURL,
		&r.WebhookID, &r.WebhookError, &statusStr, &r.Progress, &r.Message,
		&r.MerkleRoot, &r.LastUpdated, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, false, nil
	}
	if err != nil {
		return Repository{}, false, api.Wrap(api.KindStorageUnavailable, "querying repository by name", err)
	}
	r.Status = Status(statusStr)
	return r, true, nil
}
