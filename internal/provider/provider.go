// Package provider wraps the external source-control provider (GitHub):
// listing a user's repositories, reading file contents, diffing a commit,
// registering webhooks, and verifying webhook signatures (spec.md §4.6).
//
// Retryable failures (rate limits, 5xx, network errors) are retried with
// exponential backoff; non-retryable failures (4xx other than 429) are
// surfaced immediately as an api.Error carrying the matching Kind.
package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docweave/internal/api"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

// FetchTimeout bounds a single file download (spec.md §4.6).
const FetchTimeout = 30 * time.Second

// MaxRetries is the number of attempts (including the first) for retryable
// provider errors (spec.md §4.6).
const MaxRetries = 3

// MaxBackoff caps the exponential backoff delay between retries.
const MaxBackoff = 60 * time.Second

// Repo is the pass-through shape of a provider repository, returned from
// ListUserRepos (spec.md §6 "GET /user/repos").
type Repo struct {
	ID            int64
	Name          string
	FullName      string
	HTMLURL       string
	CloneURL      string
	DefaultBranch string
}

// Entry is one item returned by ListContents.
type Entry struct {
	Name            string
	Path            string
	Type            string // "file" or "dir"
	Size            int64
	ContentIdentity string
	DownloadURL     string
}

// ChangedFile is one entry of FetchCommit's file list.
type ChangedFile struct {
	Path            string
	Status          string // added | modified | removed
	ContentIdentity string
}

// CommitDiff is the result of FetchCommit.
type CommitDiff struct {
	Files []ChangedFile
}

// Client wraps google/go-github with the retry and error-kind mapping
// SPEC_FULL requires. One Client serves the whole process; the underlying
// go-github client is built afresh on every call, since each call carries
// its own user OAuth token (spec.md §6.1 identity boundary).
type Client struct {
	apiBaseURL string
}

// New constructs a Client. apiBaseURL overrides the public GitHub API root,
// for GitHub Enterprise deployments; empty uses github.com.
func New(apiBaseURL string) *Client {
	return &Client{apiBaseURL: apiBaseURL}
}

func (c *Client) githubClient(ctx context.Context, userToken string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: userToken})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = FetchTimeout

	gh := github.NewClient(httpClient)
	if c.apiBaseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(c.apiBaseURL, c.apiBaseURL)
		if err != nil {
			return nil, api.Wrap(api.KindProviderUnavailable, "configuring provider client", err)
		}
	}
	return gh, nil
}

// ListUserRepos returns every repository accessible to userToken's owner.
func (c *Client) ListUserRepos(ctx context.Context, userToken string) ([]Repo, error) {
	gh, err := c.githubClient(ctx, userToken)
	if err != nil {
		return nil, err
	}

	result, err := withRetry(ctx, func() ([]Repo, error) {
		opts := &github.RepositoryListByAuthenticatedUserOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}
		var out []Repo
		for {
			repos, resp, err := gh.Repositories.ListByAuthenticatedUser(ctx, opts)
			if err != nil {
				return nil, classifyError(err)
			}
			for _, r := range repos {
				out = append(out, Repo{
					ID:            r.GetID(),
					Name:          r.GetName(),
					FullName:      r.GetFullName(),
					HTMLURL:       r.GetHTMLURL(),
					CloneURL:      r.GetCloneURL(),
					DefaultBranch: r.GetDefaultBranch(),
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return out, nil
	})
	return result, err
}

// ListContents lists the contents of path within ownerFullName (spec.md
// §4.6 "listContents").
func (c *Client) ListContents(ctx context.Context, userToken, ownerFullName, path string) ([]Entry, error) {
	gh, err := c.githubClient(ctx, userToken)
	if err != nil {
		return nil, err
	}
	owner, repo, err := splitFullName(ownerFullName)
	if err != nil {
		return nil, err
	}

	return withRetry(ctx, func() ([]Entry, error) {
		file, dirContents, _, err := gh.Repositories.GetContents(ctx, owner, repo, path, nil)
		if err != nil {
			return nil, classifyError(err)
		}

		if file != nil {
			return []Entry{entryFromContent(file)}, nil
		}

		out := make([]Entry, 0, len(dirContents))
		for _, entry := range dirContents {
			out = append(out, entryFromContent(entry))
		}
		return out, nil
	})
}

func entryFromContent(c *github.RepositoryContent) Entry {
	typ := "file"
	if c.GetType() == "dir" {
		typ = "dir"
	}
	return Entry{
		Name:            c.GetName(),
		Path:            c.GetPath(),
		Type:            typ,
		Size:            int64(c.GetSize()),
		ContentIdentity: c.GetSHA(),
		DownloadURL:     c.GetDownloadURL(),
	}
}

// FetchFile downloads downloadURL's content. It returns (nil, nil) on a
// 4xx/5xx response rather than an error, per spec.md §4.6 ("returns null
// on 4xx/5xx") — the caller treats a nil result as "skip this file".
func (c *Client) FetchFile(ctx context.Context, downloadURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, api.Wrap(api.KindInternal, "building file download request", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}
	return body, nil
}

// FetchCommit returns the changed-file list for commitSha (spec.md §4.6
// "fetchCommit").
func (c *Client) FetchCommit(ctx context.Context, userToken, repoFullName, commitSha string) (CommitDiff, error) {
	gh, err := c.githubClient(ctx, userToken)
	if err != nil {
		return CommitDiff{}, err
	}
	owner, repo, err := splitFullName(repoFullName)
	if err != nil {
		return CommitDiff{}, err
	}

	return withRetry(ctx, func() (CommitDiff, error) {
		commit, _, err := gh.Repositories.GetCommit(ctx, owner, repo, commitSha, nil)
		if err != nil {
			return CommitDiff{}, classifyError(err)
		}

		var files []ChangedFile
		for _, f := range commit.Files {
			files = append(files, ChangedFile{
				Path:            f.GetFilename(),
				Status:          f.GetStatus(),
				ContentIdentity: f.GetSHA(),
			})
		}
		return CommitDiff{Files: files}, nil
	})
}

// RegisterWebhook creates a push-event webhook on repoFullName pointing at
// deliveryURL, secured with secret (spec.md §4.6 "registerWebhook").
func (c *Client) RegisterWebhook(ctx context.Context, userToken, repoFullName, deliveryURL, secret string) (int64, error) {
	gh, err := c.githubClient(ctx, userToken)
	if err != nil {
		return 0, err
	}
	owner, repo, err := splitFullName(repoFullName)
	if err != nil {
		return 0, err
	}

	return withRetry(ctx, func() (int64, error) {
		hook := &github.Hook{
			Events: []string{"push"},
			Config: &github.HookConfig{
				URL:         github.Ptr(deliveryURL),
				ContentType: github.Ptr("json"),
				Secret:      github.Ptr(secret),
			},
		}
		created, _, err := gh.Repositories.CreateHook(ctx, owner, repo, hook)
		if err != nil {
			return 0, classifyError(err)
		}
		return created.GetID(), nil
	})
}

// VerifyWebhookSignature performs a constant-time comparison of
// "sha256=" + hexHMAC(secret, rawBody) against sha256HeaderValue (spec.md
// §4.6/§6).
func VerifyWebhookSignature(rawBody []byte, sha256HeaderValue, secret string) bool {
	if secret == "" || sha256HeaderValue == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(sha256HeaderValue)) == 1
}

func splitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", api.New(api.KindBadRequest, fmt.Sprintf("invalid repository full name %q", fullName))
	}
	return parts[0], parts[1], nil
}

// classifyError maps a go-github error to the provider error taxonomy of
// spec.md §4.6: unavailable, unauthorized, rate_limited, not_found.
func classifyError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return api.Wrap(api.KindProviderRateLimited, "provider rate limit exceeded", err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return api.Wrap(api.KindProviderRateLimited, "provider secondary rate limit", err)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch {
		case respErr.Response.StatusCode == http.StatusUnauthorized || respErr.Response.StatusCode == http.StatusForbidden:
			return api.Wrap(api.KindUnauthorized, "provider rejected credentials", err)
		case respErr.Response.StatusCode == http.StatusNotFound:
			return api.Wrap(api.KindNotFound, "provider resource not found", err)
		case respErr.Response.StatusCode >= 500:
			return api.Wrap(api.KindProviderUnavailable, "provider server error", err)
		case respErr.Response.StatusCode == http.StatusTooManyRequests:
			return api.Wrap(api.KindProviderRateLimited, "provider rate limited", err)
		case respErr.Response.StatusCode >= 400:
			return api.Wrap(api.KindBadRequest, "provider rejected request", err)
		}
	}

	return api.Wrap(api.KindProviderUnavailable, "provider request failed", err)
}

// withRetry runs fn with exponential backoff (base 1s, cap MaxBackoff, up to
// MaxRetries attempts), retrying only errors classified as retryable
// (spec.md §4.6). Jitter is the backoff package's default randomization
// (each interval varies by ±50%); it is not full jitter.
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	op := func() (T, error) {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !api.KindOf(err).Retryable() {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxInterval(MaxBackoff),
	)

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(MaxRetries),
	)
}
