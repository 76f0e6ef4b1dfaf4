// Package logging provides a structured logging system for docweave built on
// log/slog.
//
// Log entries are tagged with a subsystem name (e.g. "Orchestrator",
// "Webhook", "ProviderClient") rather than carrying a component-specific
// field set, which keeps every call site uniform:
//
//	logging.Info("Orchestrator", "starting generation for %s", repo.Name)
//	logging.Error("Analyzer", err, "subprocess exited non-zero")
//
// Audit records security-sensitive events (webhook signature failures,
// identity verification) at INFO level with an [AUDIT] prefix so they can be
// filtered out of ordinary application logs by a downstream aggregator.
package logging
