package audio

import "time"

// Frame represents a single fixed-size chunk of captured audio flowing through
// the pipeline. Frames are the atomic unit of capture — produced by a [Source]
// while it is open, inspected by the silence gate, and consumed exactly once
// by the active encoder.
type Frame struct {
	// Samples holds normalised samples in [-1.0, 1.0], interleaved when
	// Channels > 1.
	Samples []float32

	// SampleRate in Hz as actually delivered by the source. Sources treat the
	// requested rate as a hint, so consumers must not assume this matches the
	// rate they asked for.
	SampleRate int

	// Channels: 1 for mono capture, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame's audio.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	perChannel := len(f.Samples) / f.Channels
	return time.Duration(perChannel) * time.Second / time.Duration(f.SampleRate)
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}
