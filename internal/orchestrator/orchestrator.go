// Package orchestrator implements the documentation lifecycle state
// machine: selectRepo, ingestAndGenerate, and onPush (spec.md §4.9).
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"docweave/internal/analyzer"
	"docweave/internal/events"
	"docweave/internal/ingest"
	"docweave/internal/merkle"
	"docweave/internal/metrics"
	"docweave/internal/provider"
	"docweave/internal/store"
	"docweave/pkg/logging"

	"golang.org/x/sync/singleflight"
)

const subsystem = "Orchestrator"

// defaultBranches is the fallback set of branches an incremental push is
// accepted from when the provider does not report a default branch
// (spec.md §4.9 "if absent, fall back to allowing both main and master").
var defaultBranches = []string{"main", "master"}

// Config carries the filesystem and networking knobs the Orchestrator
// needs beyond its collaborators.
type Config struct {
	OutputRoot         string // parent directory for per-repo analyzer output
	WebhookDeliveryURL string // base URL the provider should POST push events to
	WebhookSecret      string
}

// pendingPush is the coalesced changeset queued behind an in-flight run,
// following the teacher's workQueue "dirty" pattern (one slot, union of
// file sets) rather than a full FIFO, since spec.md §5 only requires "at
// most one pending follow-up per repository".
type pendingPush struct {
	changed       []provider.ChangedFile
	defaultBranch string
}

// Orchestrator wires the Source Provider Client, Ingestor, Analyzer
// Runner, Merkle Commitment, stores, and Progress Bus into the lifecycle
// described by spec.md §4.9.
type Orchestrator struct {
	cfg      Config
	client   *provider.Client
	ingestor *ingest.Ingestor
	analyzer *analyzer.Runner
	repos    *store.RepositoryStore
	status   *store.StatusStore
	docs     *store.DocumentStore
	bus      *events.Bus
	metrics  *metrics.Metrics // may be nil; every use is nil-checked

	selectGroup singleflight.Group

	mu      sync.Mutex
	running map[string]bool
	pending map[string]*pendingPush
}

// New constructs an Orchestrator. m may be nil, in which case generation
// lifecycle events are simply not counted.
func New(cfg Config, client *provider.Client, ingestor *ingest.Ingestor, runner *analyzer.Runner, repos *store.RepositoryStore, status *store.StatusStore, docs *store.DocumentStore, bus *events.Bus, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		ingestor: ingestor,
		analyzer: runner,
		repos:    repos,
		status:   status,
		docs:     docs,
		bus:      bus,
		metrics:  m,
		running:  make(map[string]bool),
		pending:  make(map[string]*pendingPush),
	}
}

// SelectRepo implements spec.md §4.9 "selectRepo(userId, repoRef)": it is
// idempotent for (userId, providerRepoId), and launches webhook
// registration plus the first full generation as background tasks the
// first time a repo is selected.
func (o *Orchestrator) SelectRepo(ctx context.Context, userID string, ref provider.Repo, userToken string) (store.Repository, error) {
	key := fmt.Sprintf("%s/%d", userID, ref.ID)

	v, err, _ := o.selectGroup.Do(key, func() (interface{}, error) {
		existing, ok, err := o.repos.Get(userID, ref.ID)
		if err != nil {
			return store.Repository{}, err
		}
		if ok {
			return existing, nil
		}

		name := ref.Name
		if name == "" {
			name = ref.FullName
		}
		repo := store.Repository{
			UserID:         userID,
			ProviderRepoID: ref.ID,
			Name:           name,
			FullName:       ref.FullName,
			HTMLURL:        ref.HTMLURL,
		}
		if err := o.repos.Insert(repo); err != nil {
			return store.Repository{}, err
		}
		inserted, _, err := o.repos.Get(userID, ref.ID)
		if err != nil {
			return store.Repository{}, err
		}

		go o.registerWebhookBestEffort(context.Background(), inserted, userToken)
		o.startRun(inserted, userToken, nil, ref.DefaultBranch)

		return inserted, nil
	})
	if err != nil {
		return store.Repository{}, err
	}
	return v.(store.Repository), nil
}

func (o *Orchestrator) registerWebhookBestEffort(ctx context.Context, repo store.Repository, userToken string) {
	deliveryURL := o.cfg.WebhookDeliveryURL
	if deliveryURL == "" {
		logging.Warn(subsystem, "no webhook delivery URL configured, skipping registration for %s", repo.Name)
		return
	}

	id, err := o.client.RegisterWebhook(ctx, userToken, repo.FullName, deliveryURL, o.cfg.WebhookSecret)
	if err != nil {
		logging.Warn(subsystem, "registering webhook for %s: %v", repo.Name, err)
		if setErr := o.repos.SetWebhook(repo.Name, nil, err.Error()); setErr != nil {
			logging.Error(subsystem, setErr, "recording webhook failure for %s", repo.Name)
		}
		return
	}

	if err := o.repos.SetWebhook(repo.Name, &id, ""); err != nil {
		logging.Error(subsystem, err, "recording webhook id for %s", repo.Name)
	}
}

// OnPush implements spec.md §4.9 "onPush(repo, changedFiles[])". If a
// generation is already running for repo, the push is coalesced into the
// pending slot (file sets unioned by path, later status wins) rather than
// starting a second concurrent run.
func (o *Orchestrator) OnPush(ctx context.Context, repoName, branch, defaultBranch string, changed []provider.ChangedFile, userToken string) error {
	if !branchAccepted(branch, defaultBranch) {
		return nil
	}

	repo, ok, err := o.repos.GetByName(repoName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no repository registered with name %q", repoName)
	}

	o.startRun(repo, userToken, changed, defaultBranch)
	return nil
}

// startRun either launches a new generation goroutine for repo, or (if one
// is already running) coalesces changed into the single pending follow-up
// slot for that repository (spec.md §5).
func (o *Orchestrator) startRun(repo store.Repository, userToken string, changed []provider.ChangedFile, defaultBranch string) {
	o.mu.Lock()
	if o.running[repo.Name] {
		o.coalesceLocked(repo.Name, changed, defaultBranch)
		o.mu.Unlock()
		return
	}
	o.running[repo.Name] = true
	o.mu.Unlock()

	go o.runLoop(repo, userToken, changed, defaultBranch)
}

// runLoop runs one generation to completion, then keeps draining the
// pending slot until it is empty, so that pushes that arrive mid-run are
// never dropped but never run concurrently with each other either.
func (o *Orchestrator) runLoop(repo store.Repository, userToken string, changed []provider.ChangedFile, defaultBranch string) {
	ctx := context.Background()
	for {
		o.ingestAndGenerate(ctx, repo, userToken, changed, defaultBranch)

		next, ok := o.takePending(repo.Name)
		if !ok {
			o.finish(repo.Name)
			return
		}
		changed, defaultBranch = next.changed, next.defaultBranch
	}
}

func (o *Orchestrator) finish(repoName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, repoName)
}

func (o *Orchestrator) takePending(repoName string) (*pendingPush, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.pending[repoName]
	if ok {
		delete(o.pending, repoName)
	}
	return p, ok
}

func (o *Orchestrator) coalesceLocked(repoName string, changed []provider.ChangedFile, defaultBranch string) {
	existing, ok := o.pending[repoName]
	if !ok {
		o.pending[repoName] = &pendingPush{changed: changed, defaultBranch: defaultBranch}
		return
	}
	existing.defaultBranch = defaultBranch
	existing.changed = unionChangedFiles(existing.changed, changed)
}

func unionChangedFiles(a, b []provider.ChangedFile) []provider.ChangedFile {
	byPath := make(map[string]provider.ChangedFile, len(a)+len(b))
	for _, f := range a {
		byPath[f.Path] = f
	}
	for _, f := range b {
		byPath[f.Path] = f // the later push wins for a given path
	}
	out := make([]provider.ChangedFile, 0, len(byPath))
	for _, f := range byPath {
		out = append(out, f)
	}
	return out
}

func branchAccepted(branch, defaultBranch string) bool {
	if defaultBranch != "" {
		return branch == defaultBranch
	}
	for _, b := range defaultBranches {
		if branch == b {
			return true
		}
	}
	return false
}

// ingestAndGenerate runs the full six-step algorithm of spec.md §4.9 when
// changed is nil (fresh selection), or the delta variant when changed is
// non-nil (an incremental push).
func (o *Orchestrator) ingestAndGenerate(ctx context.Context, repo store.Repository, userToken string, changed []provider.ChangedFile, defaultBranch string) {
	if o.metrics != nil {
		o.metrics.GenerationsStarted.Inc()
		o.metrics.GenerationsInFlight.Inc()
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.GenerationsInFlight.Dec()
		}
		if r := recover(); r != nil {
			logging.Error(subsystem, fmt.Errorf("%v", r), "generation for %s panicked", repo.Name)
			o.status.Set(repo.Name, store.StatusError, 0, "internal error during generation")
			o.bus.Publish(events.Event{Kind: events.KindDocumentationError, RepoName: repo.Name, Message: "internal error", Timestamp: now()})
			if o.metrics != nil {
				o.metrics.GenerationsFailed.Inc()
			}
		}
	}()

	o.status.Set(repo.Name, store.StatusGenerating, 10, "Starting…")
	o.bus.Publish(events.Event{Kind: events.KindDocumentationStored, RepoName: repo.Name, Progress: intPtr(10), Message: "Starting…", Timestamp: now()})

	rc := ingest.RepoContext{RepoName: repo.Name, RepoFullName: repo.FullName, UserToken: userToken}

	if changed == nil {
		if err := o.ingestor.FullWalk(ctx, rc); err != nil {
			o.fail(repo.Name, 10, err)
			return
		}
	} else {
		if err := o.ingestor.DeltaWalk(ctx, rc, changed); err != nil {
			o.fail(repo.Name, 10, err)
			return
		}
	}
	o.status.Set(repo.Name, store.StatusGenerating, 20, "Ingestion complete")

	outputDir := filepath.Join(o.cfg.OutputRoot, repo.Name)
	if err := o.analyzer.Run(ctx, analyzer.RunRequest{RepoRef: repo.FullName, OutputDir: outputDir}); err != nil {
		o.fail(repo.Name, 20, err)
		return
	}

	mdFiles, err := analyzer.ListMarkdown(outputDir)
	if err != nil {
		o.fail(repo.Name, 20, err)
		return
	}
	sort.Strings(mdFiles)

	stored := []events.Document{}
	total := len(mdFiles)
	for i, rel := range mdFiles {
		content, err := readFile(filepath.Join(outputDir, rel))
		if err != nil {
			logging.Warn(subsystem, "reading generated file %s: %v", rel, err)
			continue
		}
		if err := o.docs.Upsert(repo.Name, rel, content); err != nil {
			o.fail(repo.Name, scaleProgress(i, total), err)
			return
		}

		processed := i + 1
		progress := scaleProgress(processed, total)
		o.status.Set(repo.Name, store.StatusGenerating, progress, fmt.Sprintf("Documented %d/%d files", processed, total))
		o.bus.Publish(events.Event{
			Kind: events.KindDocumentationStored, RepoName: repo.Name, Path: rel,
			Progress: intPtr(progress), Timestamp: now(),
		})
		stored = append(stored, events.Document{Path: rel, Content: content})
	}

	commitment, err := merkle.ComputeOverDirectory(outputDir, nil)
	if err != nil {
		o.fail(repo.Name, 99, err)
		return
	}
	if err := merkle.WriteArtifact(outputDir, commitment); err != nil {
		logging.Warn(subsystem, "writing merkle artifact for %s: %v", repo.Name, err)
	}
	if err := o.repos.SetMerkleRoot(repo.Name, commitment.RootHash); err != nil {
		logging.Warn(subsystem, "persisting merkle root for %s: %v", repo.Name, err)
	}

	o.status.Set(repo.Name, store.StatusComplete, 100, "Documentation is ready!")
	o.bus.Publish(events.Event{
		Kind: events.KindDocumentationComplete, RepoName: repo.Name,
		Progress: intPtr(100), Message: "Documentation is ready!",
		Documents: stored, Timestamp: now(),
	})
	if o.metrics != nil {
		o.metrics.GenerationsCompleted.Inc()
	}
}

func (o *Orchestrator) fail(repoName string, progress int, err error) {
	logging.Error(subsystem, err, "generation failed for %s", repoName)
	o.status.Set(repoName, store.StatusError, progress, err.Error())
	o.bus.Publish(events.Event{
		Kind: events.KindDocumentationError, RepoName: repoName,
		Progress: intPtr(progress), Message: err.Error(), Timestamp: now(),
	})
	if o.metrics != nil {
		o.metrics.GenerationsFailed.Inc()
	}
}

// scaleProgress maps processed/total into [20, 99] (spec.md §4.9 step 4c).
func scaleProgress(processed, total int) int {
	if total == 0 {
		return 99
	}
	pct := 20 + int(math.Round(float64(processed)/float64(total)*79))
	if pct > 99 {
		pct = 99
	}
	if pct < 20 {
		pct = 20
	}
	return pct
}

func intPtr(v int) *int { return &v }

func now() time.Time { return time.Now().UTC() }

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
