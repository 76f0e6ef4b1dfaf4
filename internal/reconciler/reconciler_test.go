package reconciler_test

import (
	"errors"
	"testing"
	"time"

	"docweave/internal/reconciler"
	"docweave/internal/store"

	"github.com/stretchr/testify/require"
)

type fakeStatusStore struct {
	records map[string]store.StatusRecord
	sets    int
}

func newFakeStatusStore(rec store.StatusRecord) *fakeStatusStore {
	return &fakeStatusStore{records: map[string]store.StatusRecord{"widgets": rec}}
}

func (f *fakeStatusStore) Get(repoName string) store.StatusRecord {
	return f.records[repoName]
}

func (f *fakeStatusStore) Set(repoName string, status store.Status, progress int, message string) {
	f.sets++
	f.records[repoName] = store.StatusRecord{Status: status, Progress: progress, Message: message}
}

type fakeDocumentStore struct {
	hasDocs bool
	err     error
}

func (f *fakeDocumentStore) ExistsAny(repoName string) (bool, error) {
	return f.hasDocs, f.err
}

type fakeCounter struct {
	count int
}

func (c *fakeCounter) Inc() { c.count++ }

func TestReconcilePromotesStaleGeneratingWhenDocumentsExist(t *testing.T) {
	status := newFakeStatusStore(store.StatusRecord{
		Status: store.StatusGenerating, Progress: 55, LastUpdated: time.Now(),
	})
	docs := &fakeDocumentStore{hasDocs: true}
	counter := &fakeCounter{}

	r := reconciler.New(status, docs, counter)
	result := r.Reconcile("widgets")

	require.Equal(t, store.StatusComplete, result.Status)
	require.Equal(t, 100, result.Progress)
	require.Equal(t, "Documentation is ready!", result.Message)
	require.Equal(t, 1, status.sets)
	require.Equal(t, 1, counter.count)
}

func TestReconcileLeavesCompleteStatusUnchanged(t *testing.T) {
	status := newFakeStatusStore(store.StatusRecord{Status: store.StatusComplete, Progress: 100})
	docs := &fakeDocumentStore{hasDocs: true}

	r := reconciler.New(status, docs, nil)
	result := r.Reconcile("widgets")

	require.Equal(t, store.StatusComplete, result.Status)
	require.Equal(t, 0, status.sets)
}

func TestReconcileLeavesNotStartedUnchangedWithoutDocuments(t *testing.T) {
	status := newFakeStatusStore(store.StatusRecord{Status: store.StatusNotStarted})
	docs := &fakeDocumentStore{hasDocs: false}

	r := reconciler.New(status, docs, nil)
	result := r.Reconcile("widgets")

	require.Equal(t, store.StatusNotStarted, result.Status)
	require.Equal(t, 0, status.sets)
}

func TestReconcileIsIdempotent(t *testing.T) {
	status := newFakeStatusStore(store.StatusRecord{Status: store.StatusGenerating, Progress: 10})
	docs := &fakeDocumentStore{hasDocs: true}

	r := reconciler.New(status, docs, nil)
	first := r.Reconcile("widgets")
	second := r.Reconcile("widgets")

	require.Equal(t, first, second)
	require.Equal(t, 1, status.sets)
}

var errUnavailable = errors.New("document store unavailable")

func TestReconcileReturnsDBStatusOnDocumentStoreError(t *testing.T) {
	status := newFakeStatusStore(store.StatusRecord{Status: store.StatusGenerating, Progress: 40})
	docs := &fakeDocumentStore{err: errUnavailable}

	r := reconciler.New(status, docs, nil)
	result := r.Reconcile("widgets")

	require.Equal(t, store.StatusGenerating, result.Status)
	require.Equal(t, 40, result.Progress)
	require.Equal(t, 0, status.sets)
}
