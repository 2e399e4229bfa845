// Package stream provides DynamoDB Streams handlers that keep deck card counts current.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/deckcount/counts"
	"github.com/jacentio/deckcount/store"
)

const (
	eventCreated = "created"
	eventDeleted = "deleted"
)

// Snapshot is a flashcard document image delivered with a create or delete event.
type Snapshot struct {
	// ID is the card id from the stream key.
	ID string

	// EventID identifies the delivery. When set, it makes the batch commit idempotent.
	EventID string

	// Image is the card data. Nil when the data is unavailable.
	Image map[string]events.DynamoDBAttributeValue
}

// Handler processes flashcard events and adjusts ancestor deck counts.
// A Handler is built once per process and shared by all invocations.
type Handler struct {
	store   *store.Store
	updater *counts.Updater
	logger  *slog.Logger
}

// NewHandler creates a new stream handler with default walk options.
// s must be non-nil for any event that carries a deckId; without a store
// such events fail with ErrNoStore.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	return NewHandlerWithOptions(s, logger, counts.Options{})
}

// NewHandlerWithOptions creates a new stream handler with custom walk options.
func NewHandlerWithOptions(s *store.Store, logger *slog.Logger, opts counts.Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   s,
		updater: counts.NewUpdater(s, logger, opts),
		logger:  logger,
	}
}

// OnCardCreated adds one to the card's deck and all its ancestors.
func (h *Handler) OnCardCreated(ctx context.Context, snap Snapshot) error {
	if snap.Image == nil {
		h.logger.Error("card data is undefined for create event", "cardId", snap.ID)
		recordOutcome(eventCreated, outcomeNoData)
		return nil
	}
	return h.apply(ctx, snap, eventCreated, 1)
}

// OnCardDeleted subtracts one from the card's deck and all its ancestors.
// The snapshot is the card as it was before deletion.
func (h *Handler) OnCardDeleted(ctx context.Context, snap Snapshot) error {
	if snap.Image == nil {
		h.logger.Warn("card data missing on delete, cannot recover deckId", "cardId", snap.ID)
		recordOutcome(eventDeleted, outcomeNoData)
		return nil
	}
	return h.apply(ctx, snap, eventDeleted, -1)
}

// apply runs one propagation and commits it as a single batch.
func (h *Handler) apply(ctx context.Context, snap Snapshot, event string, delta int64) error {
	card, err := store.UnmarshalCard(ConvertStreamImage(snap.Image))
	if err != nil {
		h.logger.Error("failed to decode card", "cardId", snap.ID, "event", event, "error", err)
		recordOutcome(event, outcomeNoData)
		return nil
	}
	cardID := snap.ID
	if cardID == "" {
		cardID = card.ID
	}
	if card.DeckID == "" {
		h.logger.Warn("card has no deckId, skipping count update", "cardId", cardID, "event", event)
		recordOutcome(event, outcomeNoOwner)
		return nil
	}
	if h.store == nil {
		recordOutcome(event, outcomeCommitFailed)
		return fmt.Errorf("card %s %s in deck %s: %w", cardID, event, card.DeckID, ErrNoStore)
	}

	batch := h.store.NewBatch()
	if snap.EventID != "" {
		batch.WithIdempotencyKey(snap.EventID)
	}

	walk, err := h.updater.Propagate(ctx, batch, card.DeckID, delta)
	if err != nil {
		// The walk was cut short; increments queued so far are still committed.
		h.logger.Warn("ancestor walk stopped early",
			"cardId", cardID,
			"deckId", card.DeckID,
			"error", err,
		)
	}

	if err := batch.Commit(ctx); err != nil {
		msg := "failed to commit count update"
		if errors.Is(err, store.ErrIdempotencyMismatch) {
			// Redelivery saw a different ancestor chain than the first attempt.
			// DynamoDB keeps rejecting the event id until its token window expires.
			msg = "count update redelivered with a changed ancestor chain"
		}
		h.logger.Error(msg,
			"cardId", cardID,
			"deckId", card.DeckID,
			"event", event,
			"decks", walk.Queued,
			"error", err,
		)
		recordOutcome(event, outcomeCommitFailed)
		recordWalk(event, walk, false)
		return fmt.Errorf("card %s %s in deck %s: %w", cardID, event, card.DeckID, err)
	}

	h.logger.Info("updated deck counts",
		"cardId", cardID,
		"deckId", card.DeckID,
		"event", event,
		"decksUpdated", len(walk.Queued),
		"stop", string(walk.Stop),
	)
	recordOutcome(event, outcomeCommitted)
	recordWalk(event, walk, true)
	return nil
}

// HandleCardStream processes flashcard table stream events.
// This function is designed to be used as an AWS Lambda handler with
// ReportBatchItemFailures enabled. Records are handled in order; on the first
// commit failure the record is reported as failed and the rest of the batch
// is left for the retry, so no record is applied twice by this invocation.
func (h *Handler) HandleCardStream(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"sequenceNumber", record.Change.SequenceNumber,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: record.Change.SequenceNumber,
			})
			return resp, nil
		}
	}
	return resp, nil
}

// processRecord dispatches a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	snap := Snapshot{
		ID:      getStringAttr(record.Change.Keys, store.AttrID),
		EventID: record.EventID,
	}

	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert:
		snap.Image = record.Change.NewImage
		return h.OnCardCreated(ctx, snap)
	case events.DynamoDBOperationTypeRemove:
		snap.Image = record.Change.OldImage
		return h.OnCardDeleted(ctx, snap)
	default:
		// MODIFY and unknown events do not change card ownership counts.
		return nil
	}
}
