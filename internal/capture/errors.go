package capture

import (
	"errors"

	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport/batch"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport/stream"
)

// ErrorKind is the stable error taxonomy delivered to the consumer. Every
// layer-local failure is normalised to one of these values at the session
// boundary; none propagate as raw errors to the caller.
type ErrorKind string

const (
	KindPermissionDenied    ErrorKind = "PermissionDenied"
	KindDeviceUnavailable   ErrorKind = "DeviceUnavailable"
	KindTokenFetchFailed    ErrorKind = "TokenFetchFailed"
	KindConnectionLost      ErrorKind = "ConnectionLost"
	KindNoSpeechDetected    ErrorKind = "NoSpeechDetected"
	KindRecordingTooShort   ErrorKind = "RecordingTooShort"
	KindTranscriptionFailed ErrorKind = "TranscriptionFailed"
	KindEmptyResult         ErrorKind = "EmptyResult"
)

// Session-level rejection errors raised by the batch gates.
var (
	// ErrNoSpeech is raised when a completed batch recording never crossed
	// the speech-energy threshold.
	ErrNoSpeech = errors.New("capture: no speech detected in recording")

	// ErrTooShort is raised when the accumulated payload is too small to be
	// worth a transcription request, regardless of the energy gate.
	ErrTooShort = errors.New("capture: recording too short")
)

// Classify maps a layer-local error to its taxonomy kind. Unrecognised errors
// fall back to KindTranscriptionFailed.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, stream.ErrTokenFetch):
		return KindTokenFetchFailed
	case errors.Is(err, stream.ErrConnectionLost):
		return KindConnectionLost
	case errors.Is(err, ErrNoSpeech):
		return KindNoSpeechDetected
	case errors.Is(err, ErrTooShort):
		return KindRecordingTooShort
	case errors.Is(err, batch.ErrEmptyResult):
		return KindEmptyResult
	default:
		return KindTranscriptionFailed
	}
}
