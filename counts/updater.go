// Package counts propagates card count changes up the deck hierarchy.
package counts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jacentio/deckcount/store"
)

// DefaultMaxDepth matches the DynamoDB transaction item limit.
const DefaultMaxDepth = store.MaxTransactItems

// DeckReader loads a single deck. It returns store.ErrNotFound for missing decks.
type DeckReader interface {
	GetDeck(ctx context.Context, id string) (*store.Deck, error)
}

// Queue receives the increments discovered by a walk. *store.Batch implements it.
type Queue interface {
	IncrementDeckCount(deckID string, delta int64)
}

// StopReason says why an ancestor walk ended.
type StopReason string

const (
	StopNoOwner     StopReason = "no_owner"
	StopRoot        StopReason = "root"
	StopMissing     StopReason = "missing"
	StopReadFailure StopReason = "read_failure"
	StopCycle       StopReason = "cycle"
	StopDepth       StopReason = "depth"
)

// Walk is the outcome of one propagation.
type Walk struct {
	// Queued lists the decks whose count was queued, nearest first.
	Queued []string

	// Stop is why the walk ended.
	Stop StopReason

	// StopAt is the deck id the walk stopped on (empty for StopNoOwner and StopRoot).
	StopAt string
}

// Options configures an Updater.
type Options struct {
	// MaxDepth bounds the number of decks a single walk may queue.
	// Values outside 1..DefaultMaxDepth use DefaultMaxDepth, since a longer
	// walk could never be committed in one transaction.
	// Default: DefaultMaxDepth
	MaxDepth int
}

// Updater walks ancestor chains and queues count increments.
// It holds no per-call state and may be shared by concurrent handlers.
type Updater struct {
	decks    DeckReader
	logger   *slog.Logger
	maxDepth int
}

// NewUpdater creates an Updater reading decks from r.
func NewUpdater(r DeckReader, logger *slog.Logger, opts Options) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDepth < 1 || opts.MaxDepth > DefaultMaxDepth {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Updater{
		decks:    r,
		logger:   logger,
		maxDepth: opts.MaxDepth,
	}
}

// Propagate queues an increment of delta on deckID and every existing ancestor.
//
// Missing decks and read failures end the walk without an error; whatever
// was queued before stays queued. A cycle or an over-deep chain also ends
// the walk, and is reported as ErrCycleDetected or ErrDepthExceeded.
func (u *Updater) Propagate(ctx context.Context, q Queue, deckID string, delta int64) (Walk, error) {
	var w Walk
	if deckID == "" {
		w.Stop = StopNoOwner
		return w, nil
	}

	visited := make(map[string]struct{})
	for id := deckID; ; {
		if _, seen := visited[id]; seen {
			u.logger.Warn("cycle in deck ancestry, stopping count update",
				"deckId", deckID,
				"repeatedDeckId", id,
			)
			w.Stop, w.StopAt = StopCycle, id
			return w, fmt.Errorf("%w: deck %s", ErrCycleDetected, id)
		}
		if len(w.Queued) >= u.maxDepth {
			u.logger.Warn("deck ancestry too deep, stopping count update",
				"deckId", deckID,
				"stoppedAt", id,
				"maxDepth", u.maxDepth,
			)
			w.Stop, w.StopAt = StopDepth, id
			return w, fmt.Errorf("%w: stopped at deck %s after %d decks", ErrDepthExceeded, id, u.maxDepth)
		}
		visited[id] = struct{}{}

		deck, err := u.decks.GetDeck(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			u.logger.Warn("deck not found during count update", "deckId", id)
			w.Stop, w.StopAt = StopMissing, id
			return w, nil
		}
		if err != nil {
			u.logger.Error("failed to read deck during count update",
				"deckId", id,
				"error", err,
			)
			w.Stop, w.StopAt = StopReadFailure, id
			return w, nil
		}

		q.IncrementDeckCount(id, delta)
		w.Queued = append(w.Queued, id)

		if deck.IsRoot() {
			w.Stop = StopRoot
			return w, nil
		}
		id = deck.ParentID
	}
}
