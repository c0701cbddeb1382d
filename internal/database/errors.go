package database

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	// Ordinary absence, not a failure.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when a teacher registration collides
	// with an existing email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUnavailable wraps storage-level failures (connection loss,
	// timeouts). Operations are not retried internally; the caller decides.
	ErrUnavailable = errors.New("storage unavailable")
)
