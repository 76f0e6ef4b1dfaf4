package store

import (
	"database/sql"
	"errors"
	"time"

	"docweave/pkg/logging"
	pkgstrings "docweave/pkg/strings"
)

// maxMessageLen bounds the status message persisted for a repository.
// Analyzer and provider failures can attach a full stderr tail to their
// error text; that text becomes this message, so it is truncated to a
// single displayable line rather than stored unbounded.
const maxMessageLen = 200

// Status is the documentation-generation status enum (spec.md §4.3).
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// StatusRecord is the value returned by StatusStore.Get.
type StatusRecord struct {
	Status      Status
	Progress    int
	Message     string
	LastUpdated time.Time
}

// StatusStore is a durable key-value projection of per-repository
// generation progress (spec.md §4.3). The zero value with a nil db behaves
// as "not configured".
type StatusStore struct {
	db *sql.DB
}

// NewStatusStore wraps db. db may be nil, in which case the store degrades
// to "not configured" responses.
func NewStatusStore(db *sql.DB) *StatusStore {
	return &StatusStore{db: db}
}

// IsConfigured reports whether a database connection is available.
func (s *StatusStore) IsConfigured() bool {
	return s.db != nil
}

// Set upserts the status row for repoName, clamping progress to [0, 100].
// It never returns an error to the caller: storage failures here are logged
// only, because best-effort progress reporting must not abort generation
// (spec.md §4.3 failure semantics).
func (s *StatusStore) Set(repoName string, status Status, progress int, message string) {
	if !s.IsConfigured() {
		logging.Warn("StatusStore", "Set(%s) called without a configured database", repoName)
		return
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	now := time.Now().UTC()
	message = pkgstrings.TruncateDescription(message, maxMessageLen)
	_, err := s.db.Exec(`
		UPDATE repositories
		SET status = ?, progress = ?, message = ?, last_updated = ?
		WHERE name = ?
	`, string(status), progress, message, now, repoName)
	if err != nil {
		logging.Error("StatusStore", err, "failed to set status for %s", repoName)
	}
}

// Get returns the current status for repoName, or the spec-defined default
// {not_started, 0, "Documentation generation not started"} if no row
// exists. On a storage failure it returns {status: error} so the UI can
// display a transient error without crashing the orchestrator (spec.md
// §4.3).
func (s *StatusStore) Get(repoName string) StatusRecord {
	if !s.IsConfigured() {
		return StatusRecord{Status: StatusError, Message: "storage not configured"}
	}

	var rec StatusRecord
	var statusStr string
	row := s.db.QueryRow(`
		SELECT status, progress, message, last_updated
		FROM repositories WHERE name = ?
	`, repoName)
	err := row.Scan(&statusStr, &rec.Progress, &rec.Message, &rec.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusRecord{
			Status:  StatusNotStarted,
			Message: "Documentation generation not started",
		}
	}
	if err != nil {
		logging.Error("StatusStore", err, "failed to get status for %s", repoName)
		return StatusRecord{Status: StatusError, Message: err.Error()}
	}

	rec.Status = Status(statusStr)
	return rec
}
