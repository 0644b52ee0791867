package storage

import "errors"

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	// For price lookups it means "no opening price for this (symbol, date)".
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an existing natural key.
	// Price history, scores and ledgers are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
