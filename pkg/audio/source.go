// Package audio defines the capture-side types of the dictation pipeline: the
// [Source] abstraction over microphone-like inputs, the [Frame] unit of
// transport, and the pure conversion functions (resampling, PCM16
// quantisation, WAV container framing) applied to captured audio before it
// reaches a transcript transport.
//
// The [Source] interface is intentionally narrow so the capture orchestrator
// stays decoupled from platform details. Implementations live in adapter
// subpackages (e.g. audio/wavfile for file replay); test doubles live in
// audio/mock.
package audio

import (
	"context"
	"errors"
)

// Open errors returned by [Source.Open] implementations. Callers classify
// failures with [errors.Is].
var (
	// ErrPermissionDenied indicates the user or OS refused access to the
	// capture device.
	ErrPermissionDenied = errors.New("audio: capture permission denied")

	// ErrDeviceUnavailable indicates no usable capture device exists or the
	// device could not be acquired.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")
)

// Constraints describes the requested capture format and platform processing
// hints. All fields are best-effort: the source may deliver a different
// sample rate or channel count than requested, and frames report the rate
// actually in effect.
type Constraints struct {
	// SampleRate is the preferred capture rate in Hz (e.g. 16000).
	SampleRate int

	// Channels is the preferred channel count. Dictation capture requests 1.
	Channels int

	// NoiseSuppression, EchoCancellation and AutoGainControl request
	// platform-level input processing where the device supports it.
	NoiseSuppression bool
	EchoCancellation bool
	AutoGainControl  bool
}

// Source is the abstraction over a capture device or stand-in (microphone,
// file replay, scripted test input).
//
// A Source produces frames only between a successful Open and the matching
// Close: the returned channel is closed when the stream ends or Close is
// called, and no frame is ever delivered after that. Exactly one Open per
// Source instance is supported; a new capture attempt must construct a fresh
// Source rather than reuse an old handle.
type Source interface {
	// Open acquires the underlying device and starts frame delivery.
	// Acquisition may suspend indefinitely (an OS permission prompt has no
	// timeout); cancelling ctx is the only way to abandon a pending Open.
	// Returns ErrPermissionDenied or ErrDeviceUnavailable on refusal.
	//
	// The ctx governs the acquisition only; once Open returns, the stream
	// stays alive until Close.
	Open(ctx context.Context, c Constraints) (<-chan Frame, error)

	// Close releases all underlying resources and ends frame delivery.
	// It is idempotent: calling Close on an already-closed or never-opened
	// Source is safe and returns nil.
	Close() error
}
