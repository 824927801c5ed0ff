// Package silence implements the energy-threshold gate that decides whether a
// completed batch recording contained any speech. Recordings that never cross
// the threshold are rejected before a transcription request is spent on them.
package silence

import (
	"math"
	"sync"

	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
)

// Defaults chosen for normalised [-1, 1] speech input: quiet room noise sits
// well under 0.01 RMS, conversational speech above 0.03.
const (
	DefaultThreshold     = 0.015
	DefaultWindowSamples = 2048
)

// Gate accumulates a running RMS energy estimate over fixed analysis windows
// and latches a speech-presence flag the first time a window's energy crosses
// the threshold. The latch never clears for the lifetime of the gate; create
// a fresh Gate per capture attempt.
//
// Safe for concurrent use: Observe runs on the capture pump goroutine while
// HasSpeech is read at stop time.
type Gate struct {
	threshold float64
	window    int

	mu      sync.Mutex
	sumSq   float64
	n       int
	latched bool
}

// New creates a Gate. Non-positive arguments fall back to the defaults.
func New(threshold float64, windowSamples int) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if windowSamples <= 0 {
		windowSamples = DefaultWindowSamples
	}
	return &Gate{threshold: threshold, window: windowSamples}
}

// Observe feeds one captured frame into the energy estimate.
func (g *Gate) Observe(frame audio.Frame) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latched {
		return
	}
	for _, s := range frame.Samples {
		g.sumSq += float64(s) * float64(s)
		g.n++
		if g.n == g.window {
			rms := math.Sqrt(g.sumSq / float64(g.n))
			if rms >= g.threshold {
				g.latched = true
				return
			}
			g.sumSq = 0
			g.n = 0
		}
	}
}

// HasSpeech reports whether any analysis window so far crossed the speech
// threshold.
func (g *Gate) HasSpeech() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latched
}
