package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"docweave/internal/events"
	"docweave/internal/provider"
	"docweave/internal/store"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestOrchestrator wires real stores and a real bus but leaves the
// provider/ingestor/analyzer collaborators nil: WebhookDeliveryURL is left
// empty so registerWebhookBestEffort never touches the nil client, and the
// background generation goroutine's nil-pointer panic is caught by
// ingestAndGenerate's own recover (spec.md §4.9 failure semantics),
// surfacing as an ordinary status=error rather than crashing the test.
func newTestOrchestrator(t *testing.T) *Orchestrator {
	db := openTestDB(t)
	return New(Config{}, nil, nil, nil,
		store.NewRepositoryStore(db), store.NewStatusStore(db), store.NewDocumentStore(db),
		events.New(), nil)
}

func TestSelectRepoIsIdempotent(t *testing.T) {
	o := newTestOrchestrator(t)
	ref := provider.Repo{ID: 7, FullName: "acme/widgets", HTMLURL: "https://example.com/acme/widgets", DefaultBranch: "main"}

	first, err := o.SelectRepo(context.Background(), "user-1", ref, "tok")
	require.NoError(t, err)
	require.Equal(t, "acme/widgets", first.Name)
	require.Equal(t, store.StatusNotStarted, first.Status)

	second, err := o.SelectRepo(context.Background(), "user-1", ref, "tok")
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, first.Name, second.Name)

	all, err := o.repos.List("user-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSelectRepoDistinctUsersGetDistinctRows(t *testing.T) {
	o := newTestOrchestrator(t)
	ref := provider.Repo{ID: 7, FullName: "acme/widgets", HTMLURL: "https://example.com/acme/widgets"}

	_, err := o.SelectRepo(context.Background(), "user-1", ref, "tok")
	require.NoError(t, err)
	_, err = o.SelectRepo(context.Background(), "user-2", ref, "tok")
	require.NoError(t, err)

	one, err := o.repos.List("user-1")
	require.NoError(t, err)
	two, err := o.repos.List("user-2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Len(t, two, 1)
}

func TestOnPushRejectsNonDefaultBranch(t *testing.T) {
	o := newTestOrchestrator(t)
	err := o.OnPush(context.Background(), "does-not-exist", "feature/x", "main", nil, "tok")
	require.NoError(t, err) // silently ignored per spec.md §4.9, not an error
}

func TestOnPushUnknownRepoErrors(t *testing.T) {
	o := newTestOrchestrator(t)
	err := o.OnPush(context.Background(), "does-not-exist", "main", "main", nil, "tok")
	require.Error(t, err)
}

func TestBranchAccepted(t *testing.T) {
	require.True(t, branchAccepted("main", "main"))
	require.False(t, branchAccepted("dev", "main"))
	require.True(t, branchAccepted("main", ""))
	require.True(t, branchAccepted("master", ""))
	require.False(t, branchAccepted("dev", ""))
}

func TestScaleProgress(t *testing.T) {
	require.Equal(t, 99, scaleProgress(0, 0))
	require.Equal(t, 20, scaleProgress(0, 10))
	require.Equal(t, 99, scaleProgress(10, 10))
	mid := scaleProgress(5, 10)
	require.GreaterOrEqual(t, mid, 20)
	require.LessOrEqual(t, mid, 99)
}

func TestUnionChangedFilesLaterPushWins(t *testing.T) {
	a := []provider.ChangedFile{{Path: "a.go", Status: "added"}, {Path: "b.go", Status: "added"}}
	b := []provider.ChangedFile{{Path: "b.go", Status: "removed"}, {Path: "c.go", Status: "added"}}

	out := unionChangedFiles(a, b)
	byPath := make(map[string]string, len(out))
	for _, f := range out {
		byPath[f.Path] = f.Status
	}

	require.Equal(t, "added", byPath["a.go"])
	require.Equal(t, "removed", byPath["b.go"])
	require.Equal(t, "added", byPath["c.go"])
}

func TestCoalesceLockedMergesPendingFollowUp(t *testing.T) {
	o := newTestOrchestrator(t)
	o.coalesceLocked("widgets", []provider.ChangedFile{{Path: "a.go", Status: "added"}}, "main")
	o.coalesceLocked("widgets", []provider.ChangedFile{{Path: "b.go", Status: "added"}}, "main")

	p, ok := o.takePending("widgets")
	require.True(t, ok)
	require.Len(t, p.changed, 2)

	_, ok = o.takePending("widgets")
	require.False(t, ok)
}

func TestSelectRepoBackgroundFailureSurfacesAsErrorStatus(t *testing.T) {
	o := newTestOrchestrator(t)
	ref := provider.Repo{ID: 1, FullName: "acme/widgets", HTMLURL: "https://example.com"}

	_, err := o.SelectRepo(context.Background(), "user-1", ref, "tok")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec := o.status.Get("acme/widgets")
		return rec.Status == store.StatusError
	}, 2*time.Second, 10*time.Millisecond)
}
