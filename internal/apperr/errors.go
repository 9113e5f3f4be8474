// Package apperr holds the sentinel errors shared by every layer.
// Callers classify failures with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound means an id or path does not resolve to an existing file.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the target name or path is occupied by a different file.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput covers traversal attempts and malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidIdentifier is a malformed or non-UTF-8 note id. It is an ErrInvalidInput.
	ErrInvalidIdentifier = &identifierError{}
	// ErrIO wraps an underlying read, write, or rename failure.
	ErrIO = errors.New("io error")
	// ErrIndex is a failed push to, or rebuild of, the search index.
	ErrIndex = errors.New("index error")
)

type identifierError struct{}

func (*identifierError) Error() string { return "invalid identifier" }

func (*identifierError) Unwrap() error { return ErrInvalidInput }
