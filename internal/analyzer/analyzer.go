// Package analyzer supervises the external analyzer subprocess: a
// black-box command that reads a prepared repository tree and emits
// per-file markdown into an output directory (spec.md §4.8).
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"docweave/internal/api"
	"docweave/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

const subsystem = "Analyzer"

// DefaultTimeout bounds a single analyzer invocation (spec.md §4.8).
const DefaultTimeout = 30 * time.Minute

// terminationGrace is how long the runner waits after SIGTERM before
// escalating to SIGKILL.
const terminationGrace = 10 * time.Second

// stderrTailLimit bounds how much of a failed run's stderr is attached to
// the returned error.
const stderrTailLimit = 4096

// execCommandContext is overridable in tests, matching the teacher's
// execCommandContext pattern for exec.CommandContext.
var execCommandContext = exec.CommandContext

// RunRequest describes one analyzer invocation (spec.md §4.8
// "run({ repoRef, outputDir, includeGlobs, excludeGlobs, maxFileSize,
// flags[] })").
type RunRequest struct {
	RepoRef      string // clone URL or full_name, passed through as --repo
	OutputDir    string
	IncludeGlobs []string
	ExcludeGlobs []string
	MaxFileSize  int64
	Flags        []string
	Timeout      time.Duration

	// OnFile, if non-nil, is called (from a background goroutine, best
	// effort) with each .md path created or written directly in OutputDir
	// while the subprocess is still running, via an fsnotify watch; the
	// watch is not recursive, so files in subdirectories are not reported.
	// The definitive file list is still the post-exit scan done by
	// Run/ListMarkdown (spec.md §4.9 step 4). The Orchestrator does not set
	// OnFile (SPEC_FULL.md §4.8).
	OnFile func(relPath string)
}

// Runner executes the configured analyzer command as a subprocess.
type Runner struct {
	command []string
}

// New builds a Runner around command, the analyzer executable followed by
// its fixed arguments (config.Analyzer.Command). The command is never
// interpreted by a shell.
func New(command []string) *Runner {
	return &Runner{command: command}
}

// Run executes the analyzer over req. On success the output directory
// contains one or more .md files (spec.md §4.8 "On success..."); Run
// returns an error if the process exits non-zero, times out, or leaves no
// markdown behind.
func (r *Runner) Run(ctx context.Context, req RunRequest) error {
	if len(r.command) == 0 {
		return api.New(api.KindConfigurationMissing, "no analyzer command configured")
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return api.Wrap(api.KindAnalyzerFailed, "creating analyzer output directory", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, r.command[1:]...)
	args = append(args, buildFlags(req)...)

	cmd := execCommandContext(runCtx, r.command[0], args...)
	// On context deadline, send SIGTERM first; if the process has not
	// exited within terminationGrace the exec package escalates to Kill
	// (spec.md §4.8 "send termination signal, then kill").
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = terminationGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stopWatch := watchForMarkdown(req.OutputDir, req.OnFile)
	defer stopWatch()

	logging.Info(subsystem, "running %s for %s -> %s", r.command[0], req.RepoRef, req.OutputDir)

	err := cmd.Run()
	logging.Debug(subsystem, "stdout: %s", tail(stdout.String(), stderrTailLimit))
	logging.Debug(subsystem, "stderr: %s", tail(stderr.String(), stderrTailLimit))

	if runCtx.Err() == context.DeadlineExceeded {
		return api.New(api.KindAnalyzerTimeout, fmt.Sprintf("analyzer exceeded %s timeout", timeout))
	}
	if err != nil {
		return api.Wrap(api.KindAnalyzerFailed, fmt.Sprintf("analyzer exited: %s", tail(stderr.String(), stderrTailLimit)), err)
	}

	mdFiles, err := ListMarkdown(req.OutputDir)
	if err != nil {
		return api.Wrap(api.KindAnalyzerFailed, "reading analyzer output directory", err)
	}
	if len(mdFiles) == 0 {
		return api.New(api.KindAnalyzerFailed, "analyzer produced no markdown output")
	}

	return nil
}

func buildFlags(req RunRequest) []string {
	var args []string
	if req.RepoRef != "" {
		args = append(args, "--repo", req.RepoRef)
	}
	args = append(args, "--output-dir", req.OutputDir)
	for _, g := range req.IncludeGlobs {
		args = append(args, "--include", g)
	}
	for _, g := range req.ExcludeGlobs {
		args = append(args, "--exclude", g)
	}
	if req.MaxFileSize > 0 {
		args = append(args, "--max-file-size", fmt.Sprintf("%d", req.MaxFileSize))
	}
	args = append(args, req.Flags...)
	return args
}

// ListMarkdown returns every .md file under dir, sorted lexicographically
// by path relative to dir (spec.md §4.9 step 4 "sorted lexicographically").
func ListMarkdown(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var out []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".md") {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return relErr
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// watchForMarkdown watches dir for created/written .md files and reports
// each one (once) to onFile, for as long as the returned stop func has not
// been called. A nil onFile, or a watcher that fails to start, is a no-op
// (SPEC_FULL.md §4.8 enrichment — best effort, never load-bearing).
func watchForMarkdown(dir string, onFile func(relPath string)) (stop func()) {
	if onFile == nil {
		return func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn(subsystem, "starting output directory watcher: %v", err)
		return func() {}
	}
	if err := watcher.Add(dir); err != nil {
		logging.Warn(subsystem, "watching %s: %v", dir, err)
		_ = watcher.Close()
		return func() {}
	}

	seen := make(map[string]bool)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".md") {
					continue
				}
				if !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
					continue
				}
				rel, err := filepath.Rel(dir, event.Name)
				if err != nil || seen[rel] {
					continue
				}
				seen[rel] = true
				onFile(filepath.ToSlash(rel))
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
