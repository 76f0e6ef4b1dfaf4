// Package server implements the HTTP surface of spec.md §6: repository
// listing and selection, status queries, server-sent progress events, the
// webhook receiver, and a Prometheus /metrics endpoint. Routing uses
// net/http's method+pattern ServeMux (Go 1.22+), mirroring the plain
// createStandardMux construction the teacher uses for its own aggregator
// HTTP surface rather than reaching for a router dependency.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"docweave/internal/api"
	"docweave/internal/events"
	"docweave/internal/identity"
	"docweave/internal/provider"
	"docweave/internal/reconciler"
	"docweave/internal/store"
	"docweave/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "Server"

// repoLister is the subset of provider.Client a Server depends on.
type repoLister interface {
	ListUserRepos(ctx context.Context, userToken string) ([]provider.Repo, error)
}

// orchestratorAPI is the subset of orchestrator.Orchestrator a Server
// depends on.
type orchestratorAPI interface {
	SelectRepo(ctx context.Context, userID string, ref provider.Repo, userToken string) (store.Repository, error)
}

// Deps are a Server's collaborators, injected by the application bootstrap.
type Deps struct {
	Identity     *identity.Verifier
	Provider     repoLister
	Repos        *store.RepositoryStore
	Documents    *store.DocumentStore
	Orchestrator orchestratorAPI
	Bus          *events.Bus
	Reconciler   *reconciler.Reconciler
	Webhook      http.Handler
	OutputRoot   string

	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer when nil; the application bootstrap passes
	// its own per-bootstrap registry, which avoids collisions across
	// repeated bootstraps in the same process.
	MetricsGatherer prometheus.Gatherer
}

// Server holds the dependencies required to answer every endpoint of
// spec.md §6 and exposes the resulting http.Handler via Handler().
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

// New builds a Server and registers all routes.
func New(d Deps) *Server {
	s := &Server{deps: d, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.mux.HandleFunc("GET /user/repos", s.handleListUserRepos)
	s.mux.HandleFunc("GET /repos", s.handleListRepos)
	s.mux.HandleFunc("POST /repos/select", s.handleSelectRepo)
	s.mux.HandleFunc("GET /repos/{repoId}/status", s.handleStatus)
	s.mux.HandleFunc("GET /sse", s.handleSSE)

	gatherer := s.deps.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if s.deps.Webhook != nil {
		s.mux.Handle("POST /webhook", s.deps.Webhook)
		s.mux.Handle("POST /webhooks/github", s.deps.Webhook)
	}
}

func (s *Server) authenticate(r *http.Request) (identity.Identity, error) {
	if s.deps.Identity == nil {
		return identity.Identity{}, api.New(api.KindConfigurationMissing, "identity verifier is not configured")
	}
	return s.deps.Identity.FromRequest(r)
}

// handleListUserRepos implements spec.md §6 "GET /user/repos": pass-through
// listing of the authenticated user's provider repositories.
func (s *Server) handleListUserRepos(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	repos, err := s.deps.Provider.ListUserRepos(r.Context(), id.ProviderToken)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, repos)
}

// handleListRepos implements spec.md §6 "GET /repos": the persisted
// Repositories for the current user.
func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	repos, err := s.deps.Repos.List(id.UserID)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	wire := make([]api.Repository, 0, len(repos))
	for _, repo := range repos {
		wire = append(wire, toWireRepository(repo))
	}
	api.WriteJSON(w, http.StatusOK, wire)
}

// selectRepoResponse wraps the persisted Repository with the
// idempotency-disclosure message spec.md §6 describes for repeat
// selections.
type selectRepoResponse struct {
	api.Repository
	Message string `json:"message,omitempty"`
}

// handleSelectRepo implements spec.md §6 "POST /repos/select".
func (s *Server) handleSelectRepo(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	var body api.SelectRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, api.New(api.KindBadRequest, "invalid request body"))
		return
	}
	if body.Repo.ID == 0 || body.Repo.FullName == "" {
		api.WriteError(w, api.New(api.KindBadRequest, "repo.id and repo.full_name are required"))
		return
	}

	_, existedBefore, err := s.deps.Repos.Get(id.UserID, body.Repo.ID)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	ref := provider.Repo{ID: body.Repo.ID, Name: body.Repo.Name, FullName: body.Repo.FullName, HTMLURL: body.Repo.HTMLURL, CloneURL: body.Repo.CloneURL}
	repo, err := s.deps.Orchestrator.SelectRepo(r.Context(), id.UserID, ref, id.ProviderToken)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	resp := selectRepoResponse{Repository: toWireRepository(repo)}
	if existedBefore {
		resp.Message = "Repository already exists"
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// handleStatus implements spec.md §6 "GET /repos/{repoId}/status". The
// path parameter is the repository's short name, the only natural key the
// data model carries outside (userId, providerRepoId) (see DESIGN.md).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	repoName := r.PathValue("repoId")

	var rec store.StatusRecord
	if s.deps.Reconciler != nil {
		rec = s.deps.Reconciler.Reconcile(repoName)
	}

	docCount := 0
	if docs, err := s.deps.Documents.List(repoName); err == nil {
		docCount = len(docs)
	}

	repo, _, _ := s.deps.Repos.GetByName(repoName)

	api.WriteJSON(w, http.StatusOK, api.StatusResponse{
		Status:      string(rec.Status),
		Progress:    rec.Progress,
		Message:     rec.Message,
		LastUpdated: rec.LastUpdated,
		Debug: api.StatusDebug{
			MerkleRootPresent: repo.MerkleRoot != "",
			OutputDir:         fmt.Sprintf("%s/%s", s.deps.OutputRoot, repoName),
			DocumentCount:     docCount,
		},
	})
}

// handleSSE implements spec.md §6 "GET /sse": a server-sent events stream
// subscribed to the Progress Bus.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.WriteError(w, api.New(api.KindInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.deps.Bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logging.Warn(subsystem, "marshaling SSE event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func toWireRepository(r store.Repository) api.Repository {
	var webhookID *int64
	if r.WebhookID.Valid {
		id := r.WebhookID.Int64
		webhookID = &id
	}

	return api.Repository{
		ID:           r.ProviderRepoID,
		Name:         r.Name,
		GitHubRepoID: r.ProviderRepoID,
		HTMLURL:      r.HTMLURL,
		Status:       string(r.Status),
		Progress:     r.Progress,
		Message:      r.Message,
		MerkleRoot:   r.MerkleRoot,
		WebhookID:    webhookID,
		WebhookError: r.WebhookError.String,
		CreatedAt:    r.CreatedAt,
		LastUpdated:  r.LastUpdated,
	}
}
