// Package common defines sentinel errors, constants and small helpers shared
// by the portal server and its admin tooling. Callers should use errors.Is to
// match the sentinel values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorInvalidInput = errors.New("invalid input")

	// ErrorUpstream marks failures of external collaborators (LLM, mail).
	ErrorUpstream = errors.New("upstream failure")
)
