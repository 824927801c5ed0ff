// Package transport defines the abstraction over transcription backends.
//
// A [Transport] carries encoded audio from the capture pipeline to a backend
// and yields [Event] values describing the backend's transcript output. Two
// strategies implement it: transport/stream keeps a persistent duplex channel
// open and emits incremental partial/final events; transport/batch buffers a
// whole recording and performs a single request/response exchange on close.
//
// Implementations must be safe for concurrent use. Exactly one Transport
// instance is alive per capture session; a transport never emits an event
// after it has reported [EventClosed] or [EventFailed].
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send after the transport has closed or failed.
var ErrClosed = errors.New("transport: closed")

// EventType tags a transcript event.
type EventType int

const (
	// EventPartial carries a provisional recognition result that a later
	// partial or final event may supersede.
	EventPartial EventType = iota

	// EventFinal carries a recognition result the backend will not revise.
	EventFinal

	// EventClosed marks orderly termination of the transport. No further
	// events follow.
	EventClosed

	// EventFailed marks terminal failure of the transport; Err carries the
	// cause. No further events follow.
	EventFailed
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case EventPartial:
		return "Partial"
	case EventFinal:
		return "Final"
	case EventClosed:
		return "Closed"
	case EventFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Event is a single transcript event. Events are delivered strictly in the
// order received from the backend; the transport performs no reordering or
// deduplication.
type Event struct {
	// Type tags the variant.
	Type EventType

	// Text is the transcript content for Partial and Final events.
	Text string

	// Err is the failure cause for Failed events, nil otherwise.
	Err error
}

// Transport is an open channel to a transcription backend.
//
// The event stream returned by Events is closed after a terminal event
// (Closed or Failed) has been delivered, whichever path ends the transport.
type Transport interface {
	// Send delivers one encoded audio unit to the backend. For streaming
	// transports this transmits immediately, fire-and-forget; for batch
	// transports it accumulates until Close. Send after Close or failure
	// returns ErrClosed.
	Send(chunk []byte) error

	// Events returns the ordered transcript event stream.
	Events() <-chan Event

	// Close performs the orderly shutdown for the strategy: streaming sends a
	// best-effort terminate message and closes the channel; batch runs the
	// finalize exchange (one HTTP round trip) and emits its single terminal
	// result first. Safe to call more than once.
	Close(ctx context.Context) error

	// Abort tears the transport down without finalizing: no terminate
	// message, no batch request. Any in-flight exchange is cancelled. Safe to
	// call more than once and after Close.
	Abort() error
}
