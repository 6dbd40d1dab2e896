package storage

import "errors"

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Append-only stores do not allow updates.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadySet is returned when a write-once value already holds a
	// different value.
	ErrAlreadySet = errors.New("value already set")

	// ErrConflict is returned when a compare-and-swap commit observes a
	// claimed value other than the one the caller read.
	ErrConflict = errors.New("stale claimed value")

	// ErrCapExceeded is returned when a commit would push a pool total past
	// its cap. Nothing is written.
	ErrCapExceeded = errors.New("pool cap exceeded")
)
