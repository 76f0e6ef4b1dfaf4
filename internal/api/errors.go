// Package api defines the error-kind taxonomy shared across docweave's
// HTTP boundary and background orchestration, following the error-kinds
// (not error-types) design.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of a docweave error, independent of the Go
// type that carries it. Handlers switch on Kind to pick an HTTP status;
// the provider client switches on Kind to decide whether to retry.
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindBadRequest          Kind = "bad_request"
	KindNotFound            Kind = "not_found"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderRateLimited Kind = "provider_rate_limited"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindAnalyzerFailed      Kind = "analyzer_failed"
	KindAnalyzerTimeout     Kind = "analyzer_timeout"
	KindSignatureInvalid    Kind = "signature_invalid"
	KindConfigurationMissing Kind = "configuration_missing"
	KindInternal            Kind = "internal"
)

// HTTPStatus maps a Kind to the status code the HTTP boundary should return
// for it (spec.md §7 "HTTP boundary errors... surfaced directly to the
// client with the appropriate status code").
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindSignatureInvalid:
		return http.StatusUnauthorized
	case KindConfigurationMissing:
		return http.StatusInternalServerError
	case KindProviderRateLimited:
		return http.StatusTooManyRequests
	case KindProviderUnavailable, KindStorageUnavailable, KindAnalyzerFailed, KindAnalyzerTimeout, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error wraps an underlying cause with a Kind, so callers can both classify
// the failure programmatically and print a human message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and KindInternal otherwise.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether a background task should retry an error of this
// kind (spec.md §4.6 "distinguishes retryable... from non-retryable").
func (k Kind) Retryable() bool {
	switch k {
	case KindProviderUnavailable, KindProviderRateLimited:
		return true
	default:
		return false
	}
}
