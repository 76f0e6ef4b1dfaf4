// Package filter decides whether a path participates in ingestion and
// Merkle commitment.
package filter

import (
	"path"
	"strings"
)

// defaultPatterns is the built-in exclusion set. Patterns are glob-like:
// "**" matches any number of path segments including zero, "*" matches
// within a single segment, everything else is literal. Matching is
// case-insensitive and applied against the whole normalized path.
var defaultPatterns = []string{
	// version control metadata
	"**/.git/**", ".git/**", "**/.github/**", ".github/**",
	// dependency/build outputs
	"**/node_modules/**", "node_modules/**",
	"**/dist/**", "dist/**",
	"**/build/**", "build/**",
	"**/.next/**", ".next/**",
	"**/out/**", "out/**",
	"**/target/**", "target/**",
	"**/venv/**", "venv/**",
	"**/__pycache__/**", "__pycache__/**",
	// test directories
	"**/test/**", "test/**",
	"**/tests/**", "tests/**",
	"**/__tests__/**", "__tests__/**",
	"**/spec/**", "spec/**",
	"**/specs/**", "specs/**",
	"**/coverage/**", "coverage/**",
	"**/cypress/**", "cypress/**",
	"**/e2e/**", "e2e/**",
	// hidden dotfiles and directories
	"**/.*", ".*",
	"**/.*/**", ".*/**",
	// binary media/archive/executable extensions
	"**/*.png", "**/*.jpg", "**/*.jpeg", "**/*.gif", "**/*.bmp", "**/*.ico", "**/*.webp", "**/*.svg",
	"**/*.mp3", "**/*.wav", "**/*.flac", "**/*.ogg",
	"**/*.mp4", "**/*.mov", "**/*.avi", "**/*.mkv", "**/*.webm",
	"**/*.ttf", "**/*.otf", "**/*.woff", "**/*.woff2",
	"**/*.zip", "**/*.tar", "**/*.gz", "**/*.tgz", "**/*.rar", "**/*.7z",
	"**/*.doc", "**/*.docx", "**/*.xls", "**/*.xlsx", "**/*.ppt", "**/*.pptx", "**/*.pdf",
	"**/*.exe", "**/*.dll", "**/*.so", "**/*.dylib", "**/*.bin",
	"**/*.wasm",
}

// Filter decides whether a POSIX-relative path is excluded from ingestion
// and Merkle computation. It is immutable after construction and safe for
// concurrent use.
type Filter struct {
	patterns []string
}

// New builds a Filter from the built-in default pattern set plus any extra
// patterns supplied by configuration. Extra patterns are appended, never
// replacing the defaults (spec.md §9 "layered config" philosophy applied to
// exclusion patterns).
//
// Invalid patterns are rejected here, at construction time, rather than on
// every IsExcluded call (spec.md §4.1 "Invalid patterns are rejected at
// process start, not per call").
func New(extra ...string) (*Filter, error) {
	patterns := make([]string, 0, len(defaultPatterns)+len(extra))
	patterns = append(patterns, defaultPatterns...)
	for _, p := range extra {
		if _, err := path.Match(normalizePattern(p), "probe"); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return &Filter{patterns: patterns}, nil
}

// IsExcluded reports whether path matches any configured pattern. It is a
// pure function: given the same Filter and the same path it always returns
// the same answer.
func (f *Filter) IsExcluded(p string) bool {
	normalized := strings.ToLower(normalizePath(p))
	for _, pattern := range f.patterns {
		if matchGlob(strings.ToLower(normalizePattern(pattern)), normalized) {
			return true
		}
	}
	return false
}

// normalizePath converts a path to POSIX form (forward slashes) relative,
// with no leading slash.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "/")
}

func normalizePattern(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// matchGlob matches pattern against name, supporting "**" (any number of
// segments, including zero) in addition to path.Match's single-segment "*"
// and literal matching.
func matchGlob(pattern, name string) bool {
	patternSegs := strings.Split(pattern, "/")
	nameSegs := strings.Split(name, "/")
	return matchSegments(patternSegs, nameSegs)
}

func matchSegments(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], name) {
			return true
		}
		if len(name) == 0 {
			return false
		}
		return matchSegments(pattern, name[1:])
	}
	if len(name) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], name[1:])
}
