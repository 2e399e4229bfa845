package stream

import "errors"

// ErrNoStore is returned when a handler built without a store receives a
// card that needs a count update.
var ErrNoStore = errors.New("deckcount: stream handler has no store")
