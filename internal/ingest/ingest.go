// Package ingest walks a repository's tree (in full, or from a webhook's
// changed-file set), applies the exclusion filter, and materializes
// RepoFile rows (spec.md §4.7).
package ingest

import (
	"context"
	"fmt"

	"docweave/internal/api"
	"docweave/internal/filter"
	"docweave/internal/provider"
	"docweave/pkg/logging"
)

// MaxFileSize is the per-file size ceiling above which content is never
// fetched (spec.md §4.7 "if size > 5 MiB, skip").
const MaxFileSize = 5 * 1024 * 1024

// RepoContext names the repository an Ingestor run operates on: RepoName is
// the local storage key, RepoFullName is the provider "owner/repo" form,
// and UserToken authenticates provider calls on the selecting user's
// behalf.
type RepoContext struct {
	RepoName     string
	RepoFullName string
	UserToken    string
}

// sourceClient is the subset of provider.Client the Ingestor depends on,
// narrowed so tests can supply a fake.
type sourceClient interface {
	ListContents(ctx context.Context, userToken, repoFullName, path string) ([]provider.Entry, error)
	FetchFile(ctx context.Context, downloadURL string) ([]byte, error)
}

// fileStore is the subset of store.RepoFileStore the Ingestor depends on.
type fileStore interface {
	Upsert(repoName, path, fileName string, size int64, contentIdentity string, content []byte) error
	Delete(repoName, path string) error
}

// documentStore is the subset of store.DocumentStore the Ingestor depends
// on.
type documentStore interface {
	Delete(repoName, path string) error
}

// Ingestor implements the full-walk and delta-walk algorithms of spec.md
// §4.7, on top of a Source Provider Client, an exclusion Filter, and the
// RepoFile/Document stores.
type Ingestor struct {
	provider sourceClient
	filter   *filter.Filter
	files    fileStore
	docs     documentStore
}

// New constructs an Ingestor. p, files, and docs need only satisfy the
// narrowed sourceClient/fileStore/documentStore interfaces, so callers
// outside this package can wire in fakes for integration tests.
func New(p sourceClient, f *filter.Filter, files fileStore, docs documentStore) *Ingestor {
	return &Ingestor{provider: p, filter: f, files: files, docs: docs}
}

// FullWalk recursively lists rc's repository starting at the root,
// upserting a RepoFile for every non-excluded file. It emits no Progress
// events; ingestion is preparatory (spec.md §4.7 step 3).
//
// An error listing a directory aborts the whole walk (most commonly a
// provider authentication failure); an error fetching a single file's
// content does not — the file is upserted with content = nil and the walk
// continues (spec.md §4.7 "Failure semantics").
func (in *Ingestor) FullWalk(ctx context.Context, rc RepoContext) error {
	return in.walkDir(ctx, rc, "")
}

func (in *Ingestor) walkDir(ctx context.Context, rc RepoContext, dirPath string) error {
	entries, err := in.provider.ListContents(ctx, rc.UserToken, rc.RepoFullName, dirPath)
	if err != nil {
		if api.Is(err, api.KindUnauthorized) {
			return api.Wrap(api.KindUnauthorized, fmt.Sprintf("listing %q", dirPath), err)
		}
		return err
	}

	for _, entry := range entries {
		if in.filter.IsExcluded(entry.Path) {
			continue
		}

		if entry.Type == "dir" {
			if err := in.walkDir(ctx, rc, entry.Path); err != nil {
				return err
			}
			continue
		}

		in.ingestFile(ctx, rc, entry)
	}
	return nil
}

func (in *Ingestor) ingestFile(ctx context.Context, rc RepoContext, entry provider.Entry) {
	if entry.Size > MaxFileSize {
		logging.Info("Ingestor", "skipping %s: size %d exceeds %d byte limit", entry.Path, entry.Size, MaxFileSize)
		if err := in.files.Upsert(rc.RepoName, entry.Path, entry.Name, entry.Size, entry.ContentIdentity, nil); err != nil {
			logging.Warn("Ingestor", "recording oversized file %s: %v", entry.Path, err)
		}
		return
	}

	content, err := in.provider.FetchFile(ctx, entry.DownloadURL)
	if err != nil {
		logging.Warn("Ingestor", "fetching %s: %v", entry.Path, err)
		content = nil
	}

	if err := in.files.Upsert(rc.RepoName, entry.Path, entry.Name, entry.Size, entry.ContentIdentity, content); err != nil {
		logging.Error("Ingestor", err, "upserting repo file %s", entry.Path)
	}
}

// DeltaWalk applies a webhook's changed-file list: added/modified files are
// fetched and upserted, removed files delete the RepoFile and any
// RepoDocument stored under the same path as the removed file (spec.md §4.7
// "Delta-walk algorithm"). A document the analyzer wrote under a different
// path (such as the source path with a .md suffix) is not deleted here.
func (in *Ingestor) DeltaWalk(ctx context.Context, rc RepoContext, changed []provider.ChangedFile) error {
	for _, cf := range changed {
		switch cf.Status {
		case "removed":
			if err := in.files.Delete(rc.RepoName, cf.Path); err != nil {
				logging.Warn("Ingestor", "deleting repo file %s: %v", cf.Path, err)
			}
			if err := in.docs.Delete(rc.RepoName, cf.Path); err != nil {
				logging.Warn("Ingestor", "deleting document %s: %v", cf.Path, err)
			}
		default: // "added" or "modified"
			if in.filter.IsExcluded(cf.Path) {
				continue
			}
			if err := in.fetchAndUpsert(ctx, rc, cf); err != nil {
				if api.Is(err, api.KindUnauthorized) {
					return err
				}
				logging.Warn("Ingestor", "delta-fetching %s: %v", cf.Path, err)
			}
		}
	}
	return nil
}

func (in *Ingestor) fetchAndUpsert(ctx context.Context, rc RepoContext, cf provider.ChangedFile) error {
	entries, err := in.provider.ListContents(ctx, rc.UserToken, rc.RepoFullName, cf.Path)
	if err != nil {
		return err
	}
	if len(entries) != 1 || entries[0].Type != "file" {
		return fmt.Errorf("expected a single file entry for %q, got %d entries", cf.Path, len(entries))
	}
	entry := entries[0]

	if entry.Size > MaxFileSize {
		logging.Info("Ingestor", "skipping %s: size %d exceeds %d byte limit", entry.Path, entry.Size, MaxFileSize)
		return in.files.Upsert(rc.RepoName, entry.Path, entry.Name, entry.Size, entry.ContentIdentity, nil)
	}

	content, ferr := in.provider.FetchFile(ctx, entry.DownloadURL)
	if ferr != nil {
		content = nil
	}
	return in.files.Upsert(rc.RepoName, entry.Path, entry.Name, entry.Size, entry.ContentIdentity, content)
}
