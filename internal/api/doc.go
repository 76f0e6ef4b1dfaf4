// Package api holds types shared across docweave's packages: the error-kind
// taxonomy (errors.go) and the wire-level request/response shapes exposed at
// the HTTP boundary (types.go).
package api
