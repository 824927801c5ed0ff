// Package wavfile provides an [audio.Source] that replays a WAV file as a
// stream of capture frames. It is the file-backed stand-in for a live
// microphone, used by the CLI and by integration-style tests: the rest of the
// pipeline cannot tell the difference.
package wavfile

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
)

// defaultFrameSamples is the per-channel frame size emitted by the source,
// matching the processing-callback granularity of typical capture APIs.
const defaultFrameSamples = 4096

// Option configures a [Source].
type Option func(*Source)

// WithFrameSamples sets the number of per-channel samples per emitted frame.
func WithFrameSamples(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.frameSamples = n
		}
	}
}

// WithRealtime makes the source pace frame delivery at the file's natural
// playback rate instead of emitting as fast as the consumer reads. Useful
// when exercising the streaming transport against a live backend.
func WithRealtime(enabled bool) Option {
	return func(s *Source) { s.realtime = enabled }
}

// Source replays a 16-bit PCM WAV file as an [audio.Source].
// A Source supports exactly one Open; construct a new one per capture attempt.
type Source struct {
	path         string
	frameSamples int
	realtime     bool

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Source that will replay the WAV file at path.
func New(path string, opts ...Option) *Source {
	s := &Source{
		path:         path,
		frameSamples: defaultFrameSamples,
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open reads and decodes the file, then starts a goroutine that emits frames
// until the file is exhausted or Close is called. The requested constraints
// are hints only: frames carry the file's own sample rate, and a mono request
// downmixes multi-channel files.
func (s *Source) Open(ctx context.Context, c audio.Constraints) (<-chan audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: %w: %v", audio.ErrDeviceUnavailable, err)
	}
	pcm, format, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("wavfile: %w: %v", audio.ErrDeviceUnavailable, err)
	}

	samples := audio.PCM16ToFloat32(pcm)
	channels := format.Channels
	if c.Channels == 1 && channels > 1 {
		samples = audio.DownmixMono(samples, channels)
		channels = 1
	}

	frames := make(chan audio.Frame, 4)
	go s.emit(frames, samples, format.SampleRate, channels)
	return frames, nil
}

// emit slices the decoded samples into frames and delivers them until the
// source is closed or the data runs out.
func (s *Source) emit(frames chan<- audio.Frame, samples []float32, rate, channels int) {
	defer close(frames)

	step := s.frameSamples * channels
	var elapsed time.Duration

	for off := 0; off < len(samples); off += step {
		end := min(off+step, len(samples))
		frame := audio.Frame{
			Samples:    samples[off:end],
			SampleRate: rate,
			Channels:   channels,
			Timestamp:  elapsed,
		}

		if s.realtime {
			select {
			case <-time.After(frame.Duration()):
			case <-s.done:
				return
			}
		}

		select {
		case frames <- frame:
		case <-s.done:
			return
		}
		elapsed += frame.Duration()
	}
}

// Close ends frame delivery. Idempotent.
func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
