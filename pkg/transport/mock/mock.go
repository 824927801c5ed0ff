// Package mock provides an in-memory mock implementation of
// [transport.Transport] for use in unit tests.
//
// The mock is safe for concurrent use. Tests inject inbound events with Emit
// and script the Close behaviour with OnClose:
//
//	tr := mock.NewTransport()
//	tr.OnClose = func(t *mock.Transport) {
//	    t.Terminate(transport.Event{Type: transport.EventFinal, Text: "done."})
//	}
package mock

import (
	"context"
	"sync"

	"github.com/johnmichaelkuczynski/dictate/pkg/transport"
)

// Transport is a mock implementation of [transport.Transport].
// Set the exported behaviour fields before use; inspect the recorded state
// through the accessor methods.
type Transport struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	aborted bool

	events chan transport.Event
	term   sync.Once

	// OnClose, when set, replaces the default Close behaviour (emit Closed
	// and end the stream). Use it to script the finalize exchange.
	OnClose func(t *Transport)

	// SendErr, if non-nil, is returned by every Send call.
	SendErr error
}

// NewTransport returns a Transport with a buffered event stream.
func NewTransport() *Transport {
	return &Transport{events: make(chan transport.Event, 16)}
}

// Send records a copy of chunk. Returns [transport.ErrClosed] once the
// transport has been closed or aborted.
func (t *Transport) Send(chunk []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.aborted {
		return transport.ErrClosed
	}
	if t.SendErr != nil {
		return t.SendErr
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	t.sent = append(t.sent, cp)
	return nil
}

// Events implements [transport.Transport].
func (t *Transport) Events() <-chan transport.Event { return t.events }

// Close implements [transport.Transport]. Runs OnClose if set, otherwise
// emits Closed and ends the stream.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	onClose := t.OnClose
	t.mu.Unlock()
	if onClose != nil {
		onClose(t)
		return nil
	}
	t.Terminate()
	return nil
}

// Abort implements [transport.Transport]. Ends the stream with only a Closed
// event, discarding any pending exchange.
func (t *Transport) Abort() error {
	t.mu.Lock()
	t.aborted = true
	t.mu.Unlock()
	t.Terminate()
	return nil
}

// Emit injects an inbound event, as if received from the backend.
func (t *Transport) Emit(ev transport.Event) { t.events <- ev }

// Terminate emits the given events followed by Closed and ends the stream,
// exactly once. Later calls are no-ops.
func (t *Transport) Terminate(evs ...transport.Event) {
	t.term.Do(func() {
		for _, ev := range evs {
			t.events <- ev
		}
		t.events <- transport.Event{Type: transport.EventClosed}
		close(t.events)
	})
}

// SentChunks returns copies of every chunk passed to Send, in order.
func (t *Transport) SentChunks() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentBytes returns the total number of audio bytes passed to Send.
func (t *Transport) SentBytes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.sent {
		n += len(c)
	}
	return n
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Aborted reports whether Abort was called.
func (t *Transport) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

var _ transport.Transport = (*Transport)(nil)
