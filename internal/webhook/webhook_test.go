package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"docweave/internal/provider"
	"docweave/internal/webhook"

	"github.com/stretchr/testify/require"
)

const testSecret = "s3cr3t"

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type fakeNotifier struct {
	mu       sync.Mutex
	called   bool
	repoName string
	branch   string
	changed  []provider.ChangedFile
	token    string
	done     chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 1)}
}

func (f *fakeNotifier) OnPush(ctx context.Context, repoName, branch, defaultBranch string, changed []provider.ChangedFile, userToken string) error {
	f.mu.Lock()
	f.called = true
	f.repoName = repoName
	f.branch = branch
	f.changed = changed
	f.token = userToken
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func pushBody(t *testing.T) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"ref": "refs/heads/main",
		"repository": map[string]interface{}{
			"name":           "widgets",
			"full_name":      "acme/widgets",
			"default_branch": "main",
		},
		"commits": []map[string]interface{}{
			{
				"added":    []string{"docs/new.md"},
				"modified": []string{"README.md"},
				"removed":  []string{},
			},
			{
				"added":    []string{},
				"modified": []string{},
				"removed":  []string{"old.md"},
			},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestServeHTTPMissingHeadersReturnsBadRequest(t *testing.T) {
	r := webhook.New(testSecret, "tok", newFakeNotifier(), nil)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeHTTPMissingSecretReturnsInternalError(t *testing.T) {
	body := pushBody(t)
	r := webhook.New("", "tok", newFakeNotifier(), nil)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", sign(body, testSecret))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServeHTTPBadSignatureReturnsUnauthorized(t *testing.T) {
	body := pushBody(t)
	r := webhook.New(testSecret, "tok", newFakeNotifier(), nil)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServeHTTPUnhandledEventKindReturnsOK(t *testing.T) {
	body := []byte(`{}`)
	r := webhook.New(testSecret, "tok", newFakeNotifier(), nil)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", sign(body, testSecret))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Unhandled event type: ping")
}

func TestServeHTTPPushDispatchesToOrchestrator(t *testing.T) {
	body := pushBody(t)
	notifier := newFakeNotifier()
	var recordedEvent, recordedOutcome string
	r := webhook.New(testSecret, "app-token", notifier, func(event, outcome string) {
		recordedEvent, recordedOutcome = event, outcome
	})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", sign(body, testSecret))
	req.Header.Set("X-GitHub-Delivery", "delivery-123")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "delivery-123", resp["correlationId"])

	select {
	case <-notifier.done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator was never invoked")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.True(t, notifier.called)
	require.Equal(t, "widgets", notifier.repoName)
	require.Equal(t, "main", notifier.branch)
	require.Equal(t, "app-token", notifier.token)
	require.Len(t, notifier.changed, 3)
	require.Equal(t, "push", recordedEvent)
	require.Equal(t, "success", recordedOutcome)
}
