package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jacentio/deckcount/counts"
)

// Outcomes of a card event.
const (
	outcomeCommitted    = "committed"
	outcomeCommitFailed = "commit_failed"
	outcomeNoOwner      = "no_owner"
	outcomeNoData       = "no_data"
)

var (
	// cardEvents counts handled card events.
	// Labels: event (created, deleted), outcome (committed, commit_failed, no_owner, no_data)
	cardEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deckcount",
		Subsystem: "stream",
		Name:      "card_events_total",
		Help:      "Card events handled by outcome",
	}, []string{"event", "outcome"})

	// decksUpdated counts deck count increments committed.
	// Labels: event
	decksUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deckcount",
		Subsystem: "stream",
		Name:      "decks_updated_total",
		Help:      "Deck count increments committed",
	}, []string{"event"})

	// walkStops counts why ancestor walks ended.
	// Labels: reason (root, missing, read_failure, cycle, depth)
	walkStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deckcount",
		Subsystem: "stream",
		Name:      "walk_stops_total",
		Help:      "Ancestor walk terminations by reason",
	}, []string{"reason"})
)

func recordOutcome(event, outcome string) {
	cardEvents.WithLabelValues(event, outcome).Inc()
}

func recordWalk(event string, w counts.Walk, committed bool) {
	walkStops.WithLabelValues(string(w.Stop)).Inc()
	if committed {
		decksUpdated.WithLabelValues(event).Add(float64(len(w.Queued)))
	}
}
