package config

import "time"

// Config is the top-level configuration structure for docweave.
//
// It is populated by layering, in increasing priority: built-in defaults,
// an optional YAML file, then environment variables (DATABASE_URL,
// GITHUB_WEBHOOK_SECRET, PUBLIC_WEBHOOK_BASE_URL, IDENTITY_PROVIDER_JWT_SECRET).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	GitHub    GitHubConfig    `yaml:"github"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Filter    FilterConfig    `yaml:"filter"`
	Identity  IdentityConfig  `yaml:"identity"`
}

// ServerConfig configures the HTTP server that exposes the REST/SSE surface.
type ServerConfig struct {
	Host              string        `yaml:"host,omitempty"`
	Port              int           `yaml:"port,omitempty"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout,omitempty"`
	WriteTimeout      time.Duration `yaml:"writeTimeout,omitempty"`
	IdleTimeout       time.Duration `yaml:"idleTimeout,omitempty"`
	OutputRoot        string        `yaml:"outputRoot,omitempty"` // root directory for per-repo analyzer output
}

// DatabaseConfig configures the relational store.
//
// DSN is normally supplied by the DATABASE_URL environment variable; the
// YAML value is a fallback for local development. When both are empty the
// store degrades to "not configured" responses (spec.md §6) instead of
// refusing to start.
type DatabaseConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// GitHubConfig configures the Source Provider Client.
type GitHubConfig struct {
	WebhookSecret    string `yaml:"webhookSecret,omitempty"`        // falls back to GITHUB_WEBHOOK_SECRET
	PublicWebhookURL string `yaml:"publicWebhookBaseURL,omitempty"` // falls back to PUBLIC_WEBHOOK_BASE_URL
	APIBaseURL       string `yaml:"apiBaseURL,omitempty"`           // override for GitHub Enterprise

	// PushToken is an app-level GitHub token used to fetch delta content on
	// webhook-triggered pushes, which carry no end-user OAuth token (falls
	// back to GITHUB_PUSH_TOKEN). Distinct from the per-request identity
	// boundary token described in spec.md §6.1.
	PushToken string `yaml:"pushToken,omitempty"`
}

// AnalyzerConfig configures the Analyzer Runner subprocess.
type AnalyzerConfig struct {
	Command []string      `yaml:"command,omitempty"` // argv, e.g. ["tutorial-analyzer"]
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// FilterConfig configures the Exclusion Filter.
type FilterConfig struct {
	// ExtraPatterns are glob patterns appended to (never replacing) the
	// built-in default exclusion set.
	ExtraPatterns []string `yaml:"extraPatterns,omitempty"`
}

// IdentityConfig configures the identity boundary.
type IdentityConfig struct {
	// JWTSecret verifies the bearer token issued by the identity provider.
	// Falls back to IDENTITY_PROVIDER_JWT_SECRET.
	JWTSecret string `yaml:"jwtSecret,omitempty"`
}
