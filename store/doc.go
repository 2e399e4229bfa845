// Package store provides the DynamoDB data access layer for deck card counts.
//
// Decks form a forest through their parentId attribute. Each deck stores a
// denormalized totalCardCount: the number of flashcards owned by the deck or
// any of its descendants. This package reads decks and applies count
// increments as a single atomic DynamoDB transaction.
//
// # Schema
//
// The persisted layout is shared with other writers and must not change:
//
//	decks      { id: S, parentId: S | NULL, totalCardCount: N }
//	flashcards { id: S, deckId: S | NULL, ... }
//
// # Batches
//
// A [Batch] accumulates increments and commits them with one
// TransactWriteItems call, so either every queued increment is applied or
// none is:
//
//	b := s.NewBatch()
//	b.IncrementDeckCount("deck-a", 1)
//	b.IncrementDeckCount("deck-root", 1)
//	err := b.Commit(ctx)
//
// A [Store] holds no mutable state and is safe for concurrent use. A Batch
// belongs to a single goroutine.
//
// # Configuration
//
// Use [DefaultConfig] and override table names as needed:
//
//	cfg := store.DefaultConfig()
//	cfg.DecksTable = "prod-decks"
//
// # Errors
//
//   - [ErrNotFound] - deck doesn't exist or is deleted
//   - [ErrCommitFailed] - the transaction was rejected, nothing was applied
//   - [ErrBatchTooLarge] - more increments than a transaction may carry
//   - [ErrIdempotencyMismatch] - idempotency key reused for different increments
package store
