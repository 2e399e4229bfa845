package store

import "errors"

var (
	// ErrNotFound is returned when a deck doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = errors.New("deckcount: deck not found")

	// ErrCommitFailed is returned when a batch transaction fails. None of its increments were applied.
	ErrCommitFailed = errors.New("deckcount: batch commit failed")

	// ErrBatchTooLarge is returned when a batch holds more increments than Config.MaxBatchSize.
	ErrBatchTooLarge = errors.New("deckcount: batch exceeds transaction size limit")

	// ErrIdempotencyMismatch is returned when an idempotency key was already
	// used, inside DynamoDB's token window, for a batch with different increments.
	ErrIdempotencyMismatch = errors.New("deckcount: idempotency key reused with different increments")
)
