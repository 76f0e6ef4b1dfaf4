package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusStore_Get_DefaultsWhenAbsent(t *testing.T) {
	db := openTestDB(t)
	statuses := NewStatusStore(db)

	rec := statuses.Get("nonexistent")
	assert.Equal(t, StatusNotStarted, rec.Status)
	assert.Equal(t, 0, rec.Progress)
	assert.Equal(t, "Documentation generation not started", rec.Message)
}

func TestStatusStore_SetAndGet(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)
	require.NoError(t, repos.Insert(Repository{UserID: "u", ProviderRepoID: 1, Name: "r1", FullName: "u/r1"}))

	statuses := NewStatusStore(db)
	statuses.Set("r1", StatusGenerating, 20, "Starting...")

	rec := statuses.Get("r1")
	assert.Equal(t, StatusGenerating, rec.Status)
	assert.Equal(t, 20, rec.Progress)
	assert.Equal(t, "Starting...", rec.Message)
}

func TestStatusStore_Set_ClampsProgress(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)
	require.NoError(t, repos.Insert(Repository{UserID: "u", ProviderRepoID: 1, Name: "r1", FullName: "u/r1"}))

	statuses := NewStatusStore(db)
	statuses.Set("r1", StatusGenerating, 150, "over")
	assert.Equal(t, 100, statuses.Get("r1").Progress)

	statuses.Set("r1", StatusGenerating, -5, "under")
	assert.Equal(t, 0, statuses.Get("r1").Progress)
}

func TestStatusStore_NotConfigured(t *testing.T) {
	statuses := NewStatusStore(nil)

	assert.NotPanics(t, func() {
		statuses.Set("r1", StatusComplete, 100, "done")
	})

	rec := statuses.Get("r1")
	assert.Equal(t, StatusError, rec.Status)
}
