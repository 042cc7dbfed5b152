// Package progress defines the fire-and-forget event channel the
// pipeline reports through.
//
// The sink is an injected capability: the orchestrator emits events
// into whatever Sink it was constructed with, so the core runs and
// tests without any real transport behind it. Emission is fire-and-
// forget: a slow or broken observer can never stall a scan batch.
package progress

import (
	"log/slog"
	"sync"
)

// EventType distinguishes the three event families.
type EventType string

const (
	// EventPhaseChanged reports a scan status transition.
	EventPhaseChanged EventType = "phase-changed"

	// EventPageDiscovered reports a page added by the crawl.
	EventPageDiscovered EventType = "page-discovered"

	// EventPageScanned reports a page reaching a terminal per-page
	// state during the scan phase.
	EventPageScanned EventType = "page-scanned"

	// EventBatchProgress reports completed/total counts after a batch
	// barrier. Counts are monotonically non-decreasing per scan
	// because they are emitted only after the entire batch settles.
	EventBatchProgress EventType = "batch-progress"
)

// Event is one progress notification. All events carry the scan id so
// observers can subscribe per scan.
type Event struct {
	// Type is the event family.
	Type EventType

	// ScanID scopes the event to one scan.
	ScanID string

	// Phase is the scan status for EventPhaseChanged.
	Phase string

	// URL is the page URL for page events.
	URL string

	// Completed and Total carry batch-barrier counts for
	// EventBatchProgress.
	Completed int
	Total     int
}

// Sink receives progress events. Implementations must be safe for
// concurrent use and must not block.
type Sink interface {
	// Emit delivers one event. Errors are swallowed by design; the
	// pipeline never fails because an observer did.
	Emit(event Event)
}

// SlogSink logs every event at debug level.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging to the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit logs the event.
func (s *SlogSink) Emit(event Event) {
	s.logger.Debug("progress",
		"type", string(event.Type),
		"scan_id", event.ScanID,
		"phase", event.Phase,
		"url", event.URL,
		"completed", event.Completed,
		"total", event.Total,
	)
}

// NopSink discards all events.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(Event) {}

// CollectSink records events in memory. Test helper.
type CollectSink struct {
	mu     sync.Mutex
	events []Event
}

// NewCollectSink creates an empty collecting sink.
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

// Emit appends the event.
func (s *CollectSink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of everything emitted so far.
func (s *CollectSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfType returns the recorded events of one family.
func (s *CollectSink) OfType(t EventType) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
