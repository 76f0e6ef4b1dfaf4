// Package reconciler implements the status-correction pass that keeps the
// user-visible generation status tolerant of process crashes mid-run
// (spec.md §4.10).
package reconciler

import "docweave/internal/store"

// statusStore is the subset of store.StatusStore a Reconciler depends on.
type statusStore interface {
	Get(repoName string) store.StatusRecord
	Set(repoName string, status store.Status, progress int, message string)
}

// documentStore is the subset of store.DocumentStore a Reconciler depends
// on.
type documentStore interface {
	ExistsAny(repoName string) (bool, error)
}

// correctionCounter is satisfied by internal/metrics.Metrics.ReconcilerCorrections,
// narrowed here so this package does not depend on internal/metrics.
type correctionCounter interface {
	Inc()
}

// Reconciler cross-checks the Status Store against the Document Store and
// promotes stale statuses to complete when artifacts prove the work already
// finished (spec.md §3 "Ownership": the Reconciler holds only a narrow
// write right, non-complete → complete).
type Reconciler struct {
	status      statusStore
	documents   documentStore
	corrections correctionCounter
}

// New constructs a Reconciler. corrections, if non-nil, is incremented
// every time a status is actually promoted.
func New(status statusStore, documents documentStore, corrections correctionCounter) *Reconciler {
	return &Reconciler{status: status, documents: documents, corrections: corrections}
}

// Reconcile implements the four-step algorithm of spec.md §4.10: it is
// idempotent and never demotes a status. Called on every status query
// (GET /repos/{repoId}/status) rather than on a background schedule, since
// that is the only trigger spec.md names for this component.
func (r *Reconciler) Reconcile(repoName string) store.StatusRecord {
	dbStatus := r.status.Get(repoName)

	hasDocs, err := r.documents.ExistsAny(repoName)
	if err != nil {
		return dbStatus
	}

	if hasDocs && dbStatus.Status != store.StatusComplete {
		const message = "Documentation is ready!"
		r.status.Set(repoName, store.StatusComplete, 100, message)
		if r.corrections != nil {
			r.corrections.Inc()
		}
		return store.StatusRecord{
			Status:      store.StatusComplete,
			Progress:    100,
			Message:     message,
			LastUpdated: dbStatus.LastUpdated,
		}
	}

	return dbStatus
}
