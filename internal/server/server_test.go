package server_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docweave/internal/api"
	"docweave/internal/events"
	"docweave/internal/identity"
	"docweave/internal/provider"
	"docweave/internal/reconciler"
	"docweave/internal/server"
	"docweave/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-identity-secret"

func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeProvider struct {
	repos []provider.Repo
	err   error
}

func (f *fakeProvider) ListUserRepos(ctx context.Context, userToken string) ([]provider.Repo, error) {
	return f.repos, f.err
}

type fakeOrchestrator struct {
	selectCalls int
}

func (f *fakeOrchestrator) SelectRepo(ctx context.Context, userID string, ref provider.Repo, userToken string) (store.Repository, error) {
	f.selectCalls++
	return store.Repository{
		UserID: userID, ProviderRepoID: ref.ID, Name: ref.FullName, FullName: ref.FullName,
		HTMLURL: ref.HTMLURL, Status: store.StatusNotStarted, CreatedAt: time.Now(), LastUpdated: time.Now(),
	}, nil
}

func newTestServer(t *testing.T, prov *fakeProvider, orch *fakeOrchestrator) (*server.Server, *store.RepositoryStore, *store.DocumentStore) {
	db := openTestDB(t)
	repos := store.NewRepositoryStore(db)
	docs := store.NewDocumentStore(db)
	status := store.NewStatusStore(db)
	bus := events.New()
	rec := reconciler.New(status, docs, nil)

	s := server.New(server.Deps{
		Identity:     identity.NewVerifier(testSecret),
		Provider:     prov,
		Repos:        repos,
		Documents:    docs,
		Orchestrator: orch,
		Bus:          bus,
		Reconciler:   rec,
		OutputRoot:   "/tmp/docweave-output",
	})
	return s, repos, docs
}

func TestHandleListUserReposRequiresAuth(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeProvider{}, &fakeOrchestrator{})
	req := httptest.NewRequest(http.MethodGet, "/user/repos", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleListUserReposReturnsProviderRepos(t *testing.T) {
	prov := &fakeProvider{repos: []provider.Repo{{ID: 1, FullName: "acme/widgets"}}}
	s, _, _ := newTestServer(t, prov, &fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodGet, "/user/repos", nil)
	req.Header.Set("Authorization", bearerFor(t, "user-1"))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got []provider.Repo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "acme/widgets", got[0].FullName)
}

func TestHandleSelectRepoInsertsAndReportsExisting(t *testing.T) {
	orch := &fakeOrchestrator{}
	s, repos, _ := newTestServer(t, &fakeProvider{}, orch)

	body, _ := json.Marshal(api.SelectRepoRequest{Repo: api.RepoRef{ID: 9, Name: "widgets", FullName: "acme/widgets"}})

	req := httptest.NewRequest(http.MethodPost, "/repos/select", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, "user-1"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Empty(t, first["message"])
	require.Equal(t, 1, orch.selectCalls)

	require.NoError(t, repos.Insert(store.Repository{UserID: "user-1", ProviderRepoID: 9, Name: "acme/widgets", FullName: "acme/widgets"}))

	req2 := httptest.NewRequest(http.MethodPost, "/repos/select", bytes.NewReader(body))
	req2.Header.Set("Authorization", bearerFor(t, "user-1"))
	w2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(w2, req2)

	require.Equal(t, http.StatusOK, w2.Code)
	var second map[string]interface{}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &second))
	require.Equal(t, "Repository already exists", second["message"])
}

func TestHandleSelectRepoRejectsMissingFields(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeProvider{}, &fakeOrchestrator{})

	body, _ := json.Marshal(api.SelectRepoRequest{})
	req := httptest.NewRequest(http.MethodPost, "/repos/select", bytes.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, "user-1"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStatusReconcilesNotStartedStatusWithDocuments(t *testing.T) {
	s, repos, docs := newTestServer(t, &fakeProvider{}, &fakeOrchestrator{})

	require.NoError(t, repos.Insert(store.Repository{UserID: "user-1", ProviderRepoID: 3, Name: "widgets", FullName: "acme/widgets"}))
	require.NoError(t, docs.Upsert("widgets", "README.md", "# hi"))

	req := httptest.NewRequest(http.MethodGet, "/repos/widgets/status", nil)
	req.Header.Set("Authorization", bearerFor(t, "user-1"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "complete", resp.Status)
	require.Equal(t, 100, resp.Progress)
	require.Equal(t, 1, resp.Debug.DocumentCount)
}

func TestHandleSSESendsConnectedEvent(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeProvider{}, &fakeOrchestrator{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/sse", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	require.Contains(t, w.Body.String(), `"type":"connected"`)
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeProvider{}, &fakeOrchestrator{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
