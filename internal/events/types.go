// Package events implements the Progress Bus: an in-process publish/
// subscribe fan-out of generation progress, surfaced to clients over
// server-sent events.
//
// Scheduling model: all publish and subscribe calls are safe for concurrent
// use (guarded by a single mutex around the subscriber set and buffer), so
// the HTTP layer and the orchestrator's goroutines can call in without an
// external event loop (spec.md §4.5/§5).
package events

import "time"

// Kind identifies the category of a ProgressEvent.
type Kind string

const (
	KindConnected             Kind = "connected"
	KindDocumentationStored   Kind = "documentation_stored"
	KindDocumentationError    Kind = "documentation_error"
	KindDocumentationComplete Kind = "documentation_complete"
)

// Document is a single generated file, carried on a documentation_complete
// event.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Event is a transient progress notification. It is never persisted;
// ProgressEvent in spec.md §3.
type Event struct {
	Kind      Kind       `json:"type"`
	RepoName  string     `json:"repoName"`
	Path      string      `json:"path,omitempty"`
	Progress  *int        `json:"progress,omitempty"`
	Message   string      `json:"message,omitempty"`
	Documents []Document  `json:"documents"`
	Timestamp time.Time   `json:"timestamp"`
}
