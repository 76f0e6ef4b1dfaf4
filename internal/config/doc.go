// Package config provides configuration loading for docweave.
//
// Configuration is assembled in increasing priority:
//
//  1. Default() — built-in defaults (no database, 0.0.0.0:8080, tutorial-analyzer)
//  2. An optional YAML file, named by the --config-path flag
//  3. Environment variables: DATABASE_URL, GITHUB_WEBHOOK_SECRET,
//     PUBLIC_WEBHOOK_BASE_URL, IDENTITY_PROVIDER_JWT_SECRET, GITHUB_API_BASE_URL
//
// A missing DATABASE_URL is not a startup error: the server starts with the
// stores degraded, per spec.md §6. The Document, Repository and RepoFile
// stores return storage_unavailable; the Status Store reports an error
// status instead.
//
// # Usage
//
//	cfg, err := config.Load("/etc/docweave/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !cfg.IsDatabaseConfigured() {
//	    logging.Warn("Config", "starting without a database; storage endpoints will degrade")
//	}
package config
