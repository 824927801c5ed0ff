// Package mock provides an in-memory mock implementation of [audio.Source]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts, and exposes exported fields the test sets
// to control behaviour:
//
//	src := &mock.Source{ScriptedFrames: []audio.Frame{{Samples: samples, SampleRate: 44100, Channels: 1}}}
//	frames, err := src.Open(ctx, audio.Constraints{SampleRate: 16000, Channels: 1})
package mock

import (
	"context"
	"sync"

	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
)

// Source is a mock implementation of [audio.Source].
// Set the exported behaviour fields before use; inspect the CallCount fields
// after.
type Source struct {
	mu sync.Mutex

	// OpenError, when non-nil, is returned by Open. Combine with
	// audio.ErrPermissionDenied or audio.ErrDeviceUnavailable to simulate
	// acquisition failures.
	OpenError error

	// OpenGate, when non-nil, makes Open block until the channel is closed or
	// the context is cancelled — simulating a pending OS permission prompt
	// that the user never answers.
	OpenGate chan struct{}

	// ScriptedFrames are delivered in order on the stream returned by Open,
	// after which the stream stays open until Close (or closes immediately if
	// CloseAfterScript is set).
	ScriptedFrames []audio.Frame

	// CloseAfterScript closes the frame stream as soon as the scripted frames
	// have been delivered, simulating a source that drains on its own.
	CloseAfterScript bool

	// CallCountOpen records how many times Open was called.
	CallCountOpen int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	done      chan struct{}
	closeOnce sync.Once
}

// Open implements [audio.Source]. It honours OpenGate, returns OpenError if
// set, and otherwise starts delivering ScriptedFrames.
func (s *Source) Open(ctx context.Context, _ audio.Constraints) (<-chan audio.Frame, error) {
	s.mu.Lock()
	s.CallCountOpen++
	if s.done == nil {
		s.done = make(chan struct{})
	}
	gate := s.OpenGate
	openErr := s.OpenError
	script := s.ScriptedFrames
	closeAfter := s.CloseAfterScript
	done := s.done
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
			return nil, audio.ErrDeviceUnavailable
		}
	}
	if openErr != nil {
		return nil, openErr
	}

	frames := make(chan audio.Frame, len(script)+1)
	go func() {
		defer close(frames)
		for _, f := range script {
			select {
			case frames <- f:
			case <-done:
				return
			}
		}
		if closeAfter {
			return
		}
		<-done
	}()
	return frames, nil
}

// Counts returns the recorded Open and Close call counts. Safe to call while
// the source is in use by another goroutine.
func (s *Source) Counts() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountOpen, s.CallCountClose
}

// Close implements [audio.Source]. Idempotent; ends frame delivery.
func (s *Source) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	if s.done == nil {
		s.done = make(chan struct{})
	}
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
