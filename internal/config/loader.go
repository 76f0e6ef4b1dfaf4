package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"docweave/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Load builds the effective configuration by starting from Default(),
// layering an optional YAML file on top, then applying environment
// variable overrides (spec.md §6). configPath may name either a directory
// (containing config.yaml) or the YAML file itself; an empty configPath
// skips file loading entirely and environment variables still apply.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		filePath := configPath
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			filePath = filepath.Join(configPath, configFileName)
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logging.Info("ConfigLoader", "No config file found at %s, using defaults", filePath)
			} else {
				return Config{}, fmt.Errorf("reading config file %s: %w", filePath, err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
			logging.Info("ConfigLoader", "Loaded configuration from %s", filePath)
		}
	}

	applyEnvOverrides(&cfg)

	if errs := Validate(cfg); errs.HasErrors() {
		return Config{}, errs
	}

	return cfg, nil
}

// applyEnvOverrides layers the environment variables named in spec.md §6 on
// top of file/default configuration. Environment variables always win, which
// keeps secrets out of committed YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("GITHUB_WEBHOOK_SECRET"); v != "" {
		cfg.GitHub.WebhookSecret = v
	}
	if v := os.Getenv("PUBLIC_WEBHOOK_BASE_URL"); v != "" {
		cfg.GitHub.PublicWebhookURL = v
	}
	if v := os.Getenv("IDENTITY_PROVIDER_JWT_SECRET"); v != "" {
		cfg.Identity.JWTSecret = v
	}
	if v := os.Getenv("GITHUB_API_BASE_URL"); v != "" {
		cfg.GitHub.APIBaseURL = v
	}
	if v := os.Getenv("GITHUB_PUSH_TOKEN"); v != "" {
		cfg.GitHub.PushToken = v
	}
}

// IsDatabaseConfigured reports whether a DSN was supplied. When false, the
// Status Store and Document Store degrade to "not configured" responses
// rather than crashing (spec.md §6).
func (c Config) IsDatabaseConfigured() bool {
	return c.Database.DSN != ""
}
