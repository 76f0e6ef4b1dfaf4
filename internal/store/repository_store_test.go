package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryStore_InsertAndGet(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)

	require.NoError(t, repos.Insert(Repository{
		UserID:         "user-1",
		ProviderRepoID: 42,
		Name:           "repo-42",
		FullName:       "user/repo",
		HTMLURL:        "https://github.com/user/repo",
	}))

	got, found, err := repos.Get("user-1", 42)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "repo-42", got.Name)
	assert.Equal(t, StatusNotStarted, got.Status)
	assert.Equal(t, 0, got.Progress)
}

func TestRepositoryStore_Get_NotFound(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)

	_, found, err := repos.Get("nobody", 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepositoryStore_SetWebhook(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)
	require.NoError(t, repos.Insert(Repository{UserID: "u", ProviderRepoID: 1, Name: "r1", FullName: "u/r1"}))

	id := int64(99)
	require.NoError(t, repos.SetWebhook("r1", &id, ""))

	got, _, err := repos.Get("u", 1)
	require.NoError(t, err)
	require.True(t, got.WebhookID.Valid)
	assert.Equal(t, int64(99), got.WebhookID.Int64)
	assert.False(t, got.WebhookError.Valid)
}

func TestRepositoryStore_SetWebhook_Error(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)
	require.NoError(t, repos.Insert(Repository{UserID: "u", ProviderRepoID: 1, Name: "r1", FullName: "u/r1"}))

	require.NoError(t, repos.SetWebhook("r1", nil, "registration failed: 403"))

	got, _, err := repos.Get("u", 1)
	require.NoError(t, err)
	assert.False(t, got.WebhookID.Valid)
	require.True(t, got.WebhookError.Valid)
	assert.Equal(t, "registration failed: 403", got.WebhookError.String)
}

func TestRepositoryStore_List(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)
	require.NoError(t, repos.Insert(Repository{UserID: "u", ProviderRepoID: 1, Name: "b-repo", FullName: "u/b"}))
	require.NoError(t, repos.Insert(Repository{UserID: "u", ProviderRepoID: 2, Name: "a-repo", FullName: "u/a"}))
	require.NoError(t, repos.Insert(Repository{UserID: "other", ProviderRepoID: 3, Name: "c-repo", FullName: "other/c"}))

	list, err := repos.List("u")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-repo", list[0].Name)
	assert.Equal(t, "b-repo", list[1].Name)
}

func TestRepositoryStore_NotConfigured(t *testing.T) {
	repos := NewRepositoryStore(nil)

	_, _, err := repos.Get("u", 1)
	assert.Error(t, err)

	err = repos.Insert(Repository{})
	assert.Error(t, err)
}

func TestRepositoryStore_SetMerkleRoot(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryStore(db)
	require.NoError(t, repos.Insert(Repository{UserID: "u", ProviderRepoID: 1, Name: "r1", FullName: "u/r1"}))

	require.NoError(t, repos.SetMerkleRoot("r1", "deadbeef"))

	got, _, err := repos.GetByName("r1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got.MerkleRoot)
}
