package eventbridge

import "time"

// Event is one parsed frame from the broker.
type Event struct {
	// Topic the frame arrived on.
	Topic string

	// Payload is the decoded JSON value (map[string]any, []any, string, ...).
	Payload any

	// Raw is a private copy of the frame bytes.
	Raw []byte

	// ReceivedAt is when the frame was accepted.
	ReceivedAt time.Time

	// Seq increases by one for every delivered event on a Manager, starting at 1.
	Seq uint64
}

// Handler consumes events. It is called from a single goroutine at a time,
// in arrival order, and must not block for long.
type Handler func(Event)
