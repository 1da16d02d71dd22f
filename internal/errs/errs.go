// Package errs defines the sentinel errors shared across layers. Callers
// classify failures with errors.Is and map them to transport responses at the
// edge.
package errs

import "errors"

var (
	// ErrAuth marks a failed credential verification (token or handshake).
	ErrAuth = errors.New("authentication failed")

	// ErrValidation marks malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrPersist marks a storage write that did not go through.
	ErrPersist = errors.New("persistence failed")

	// ErrRouting marks a message or receipt aimed at a conversation the
	// caller does not participate in.
	ErrRouting = errors.New("routing failed")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists marks a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized marks a rejected login without revealing which
	// credential was wrong.
	ErrUnauthorized = errors.New("unauthorized")
)
