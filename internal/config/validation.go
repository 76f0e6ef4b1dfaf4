package config

import (
	"fmt"
	"strings"
)

// ValidationError reports a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", ve.Field, ve.Message)
}

// ValidationErrors collects every ValidationError found by Validate, so a
// caller sees the whole set of problems instead of failing fast on the
// first one.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	messages := make([]string, len(ve))
	for i, err := range ve {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(messages, "; "))
}

// HasErrors reports whether any validation errors were collected.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

func (ve *ValidationErrors) add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}

// Validate checks a fully-layered Config for internally inconsistent or
// out-of-range values. It does not check DATABASE_URL or
// IDENTITY_PROVIDER_JWT_SECRET for presence — an unconfigured database or
// identity boundary is a runtime degradation (spec.md §6), not a startup
// error.
func Validate(cfg Config) ValidationErrors {
	var errs ValidationErrors

	if cfg.Server.Host == "" {
		errs.add("server.host", "must not be empty")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.add("server.port", fmt.Sprintf("must be between 0 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadHeaderTimeout <= 0 {
		errs.add("server.readHeaderTimeout", "must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs.add("server.writeTimeout", "must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errs.add("server.idleTimeout", "must be positive")
	}
	if cfg.Server.OutputRoot == "" {
		errs.add("server.outputRoot", "must not be empty")
	}

	if len(cfg.Analyzer.Command) == 0 {
		errs.add("analyzer.command", "must name at least the analyzer executable")
	}
	if cfg.Analyzer.Timeout <= 0 {
		errs.add("analyzer.timeout", "must be positive")
	}

	return errs
}
