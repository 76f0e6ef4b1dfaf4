// Package app bootstraps docweave: it loads configuration, constructs every
// collaborator described in spec.md §2 (filter, stores, provider client,
// ingestor, analyzer runner, progress bus, orchestrator, reconciler,
// webhook receiver), wires them into the HTTP server, and owns the
// process's startup and graceful-shutdown sequence.
//
// Bootstrap is two-phase, mirroring how the teacher's own application
// entry point separates configuration/service construction from running:
//
//  1. NewApplication loads configuration and constructs every service.
//  2. Run starts the HTTP listener and blocks until the context is
//     cancelled (typically by an OS signal), then shuts down gracefully.
package app
