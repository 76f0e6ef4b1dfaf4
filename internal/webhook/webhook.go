// Package webhook implements the signature-verified HTTP entry point that
// decodes provider push events and hands them to the Orchestrator
// (spec.md §4.11).
package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"docweave/internal/api"
	"docweave/internal/provider"
	"docweave/pkg/logging"
)

const subsystem = "WebhookReceiver"

// pushNotifier is the subset of the Orchestrator a Receiver depends on.
type pushNotifier interface {
	OnPush(ctx context.Context, repoName, branch, defaultBranch string, changed []provider.ChangedFile, userToken string) error
}

// Receiver decodes and dispatches provider webhook deliveries. secret
// verifies the HMAC signature (spec.md §6 "X-Hub-Signature-256"); pushToken
// is the app-level provider credential used to fetch delta content on a
// push, since a webhook delivery carries no end-user OAuth token
// (SPEC_FULL.md §9, resolving spec.md's implicit gap between the
// interactive identity boundary and automated push delivery — see
// DESIGN.md).
type Receiver struct {
	secret       string
	pushToken    string
	orchestrator pushNotifier
	deliveries   *deliveryCounterVec
}

// deliveryCounterVec wraps the delivery-count callback given to New, so
// this package does not depend on *prometheus.CounterVec's concrete type.
type deliveryCounterVec struct {
	inc func(event, outcome string)
}

// New constructs a Receiver. onDelivery, if non-nil, is called once per
// processed delivery with the event kind and outcome ("success" or
// "failure"), wired to internal/metrics.Metrics.WebhookDeliveries by the
// application bootstrap.
func New(secret, pushToken string, orchestrator pushNotifier, onDelivery func(event, outcome string)) *Receiver {
	var counter *deliveryCounterVec
	if onDelivery != nil {
		counter = &deliveryCounterVec{inc: onDelivery}
	}
	return &Receiver{secret: secret, pushToken: pushToken, orchestrator: orchestrator, deliveries: counter}
}

func (r *Receiver) record(event, outcome string) {
	if r.deliveries != nil {
		r.deliveries.inc(event, outcome)
	}
}

// pushCommit is the subset of a GitHub push-event commit entry this system
// interprets: the file paths it added, removed, or modified.
type pushCommit struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// pushPayload is a tagged shape for the "push" event kind (spec.md §9
// "define tagged variants for webhook events... never propagate loosely
// typed dictionaries beyond the webhook/provider adapter").
type pushPayload struct {
	Ref        string `json:"ref"`
	Repository struct {
		Name          string `json:"name"`
		FullName      string `json:"full_name"`
		DefaultBranch string `json:"default_branch"`
	} `json:"repository"`
	Commits []pushCommit `json:"commits"`
}

// ServeHTTP implements the contract of spec.md §4.11.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	eventKind := req.Header.Get("X-GitHub-Event")
	signature := req.Header.Get("X-Hub-Signature-256")
	delivery := req.Header.Get("X-GitHub-Delivery")

	if eventKind == "" || signature == "" {
		api.WriteError(w, api.New(api.KindBadRequest, "missing required webhook headers"))
		return
	}

	if r.secret == "" {
		api.WriteError(w, api.New(api.KindConfigurationMissing, "webhook secret is not configured"))
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		api.WriteError(w, api.New(api.KindBadRequest, "reading request body"))
		return
	}

	if !provider.VerifyWebhookSignature(body, signature, r.secret) {
		logging.Audit(logging.AuditEvent{
			Action: "webhook_delivery", Outcome: "failure", Target: eventKind,
			Details: "signature verification failed",
		})
		r.record(eventKind, "failure")
		api.WriteError(w, api.New(api.KindSignatureInvalid, "signature verification failed"))
		return
	}

	if eventKind != "push" {
		r.record(eventKind, "success")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Unhandled event type: %s", eventKind)
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		r.record(eventKind, "failure")
		api.WriteError(w, api.New(api.KindBadRequest, "decoding push payload"))
		return
	}

	correlationID := delivery
	if correlationID == "" {
		correlationID = newCorrelationID()
	}

	branch := branchFromRef(payload.Ref)
	changed := changedFiles(payload.Commits)

	logging.Audit(logging.AuditEvent{
		Action: "webhook_delivery", Outcome: "success", Target: payload.Repository.FullName,
		Details: fmt.Sprintf("branch=%s files=%d correlationId=%s", branch, len(changed), correlationID),
	})
	r.record(eventKind, "success")

	go func() {
		if err := r.orchestrator.OnPush(context.Background(), payload.Repository.Name, branch, payload.Repository.DefaultBranch, changed, r.pushToken); err != nil {
			logging.Error(subsystem, err, "handling push for %s", payload.Repository.FullName)
		}
	}()

	api.WriteJSON(w, http.StatusAccepted, map[string]string{"correlationId": correlationID})
}

// branchFromRef strips the "refs/heads/" prefix GitHub sends on push
// events, leaving the bare branch name spec.md §4.9 compares against a
// repository's default branch.
func branchFromRef(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

// changedFiles unions every commit's added/modified/removed file lists into
// a single per-path changeset, keeping the last status seen for any path
// touched by more than one commit in the push.
func changedFiles(commits []pushCommit) []provider.ChangedFile {
	byPath := make(map[string]provider.ChangedFile)
	for _, c := range commits {
		for _, p := range c.Added {
			byPath[p] = provider.ChangedFile{Path: p, Status: "added"}
		}
		for _, p := range c.Modified {
			byPath[p] = provider.ChangedFile{Path: p, Status: "modified"}
		}
		for _, p := range c.Removed {
			byPath[p] = provider.ChangedFile{Path: p, Status: "removed"}
		}
	}

	out := make([]provider.ChangedFile, 0, len(byPath))
	for _, f := range byPath {
		out = append(out, f)
	}
	return out
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
