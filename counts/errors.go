package counts

import "errors"

var (
	// ErrCycleDetected is returned when a deck reappears in its own ancestor chain.
	ErrCycleDetected = errors.New("deckcount: cycle detected in deck ancestry")

	// ErrDepthExceeded is returned when the ancestor chain is longer than Options.MaxDepth.
	ErrDepthExceeded = errors.New("deckcount: deck ancestry exceeds maximum depth")
)
