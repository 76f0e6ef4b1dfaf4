package config

import "time"

// DefaultMaxFileSize is the largest source file that is ingested or hashed,
// per spec.md §3/§4.7 (5 MiB).
const DefaultMaxFileSize = 5 * 1024 * 1024

// DefaultAnalyzerTimeout is the hard wall-clock timeout for an analyzer run
// (spec.md §4.8).
const DefaultAnalyzerTimeout = 30 * time.Minute

// DefaultProviderTimeout is the per-request timeout to the source provider
// (spec.md §4.6/§5).
const DefaultProviderTimeout = 30 * time.Second

// DefaultBufferTTL is how long the Progress Bus retains events for late
// subscribers (spec.md §4.5).
const DefaultBufferTTL = 30 * time.Second

// Default returns the built-in configuration used when no YAML file is
// present, mirroring muster's GetDefaultConfigWithRoles.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       120 * time.Second,
			OutputRoot:        "./data/output",
		},
		Analyzer: AnalyzerConfig{
			Command: []string{"tutorial-analyzer"},
			Timeout: DefaultAnalyzerTimeout,
		},
	}
}
