package capture_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/johnmichaelkuczynski/dictate/internal/capture"
	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
	audiomock "github.com/johnmichaelkuczynski/dictate/pkg/audio/mock"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport"
	transportmock "github.com/johnmichaelkuczynski/dictate/pkg/transport/mock"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport/stream"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

// recorder captures every callback invocation for later assertion.
type recorder struct {
	mu       sync.Mutex
	states   []capture.State
	partials []string
	finals   []string
	kinds    []capture.ErrorKind
}

func (r *recorder) callbacks() capture.Callbacks {
	return capture.Callbacks{
		OnPartial: func(text string) {
			r.mu.Lock()
			r.partials = append(r.partials, text)
			r.mu.Unlock()
		},
		OnFinal: func(text string) {
			r.mu.Lock()
			r.finals = append(r.finals, text)
			r.mu.Unlock()
		},
		OnError: func(kind capture.ErrorKind, _ string) {
			r.mu.Lock()
			r.kinds = append(r.kinds, kind)
			r.mu.Unlock()
		},
		OnStateChange: func(st capture.State) {
			r.mu.Lock()
			r.states = append(r.states, st)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) sawState(st capture.State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == st {
			return true
		}
	}
	return false
}

func (r *recorder) snapshot() (states []capture.State, partials, finals []string, kinds []capture.ErrorKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.State(nil), r.states...),
		append([]string(nil), r.partials...),
		append([]string(nil), r.finals...),
		append([]capture.ErrorKind(nil), r.kinds...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}

// waitIdle waits for the session to settle back to Idle after an attempt.
func waitIdle(t *testing.T, s *capture.Session, r *recorder) {
	t.Helper()
	waitFor(t, func() bool {
		return s.State() == capture.StateIdle && r.sawState(capture.StateIdle)
	}, "session to return to Idle")
}

// toneFrames builds n frames of a sine tone at the given peak amplitude.
func toneFrames(n, samplesEach, rate int, peak float64) []audio.Frame {
	out := make([]audio.Frame, n)
	for i := range out {
		samples := make([]float32, samplesEach)
		for j := range samples {
			samples[j] = float32(peak * math.Sin(2*math.Pi*float64(j)/64))
		}
		out[i] = audio.Frame{Samples: samples, SampleRate: rate, Channels: 1}
	}
	return out
}

// testSetup bundles a session with its recorder and the transports it opened.
type testSetup struct {
	session *capture.Session
	rec     *recorder

	mu         sync.Mutex
	transports []*transportmock.Transport
	dialErr    error
	newTr      func() *transportmock.Transport
}

func newTestSetup(t *testing.T, src func() audio.Source, cfg capture.Config) *testSetup {
	t.Helper()
	ts := &testSetup{rec: &recorder{}, newTr: transportmock.NewTransport}
	cfg.NewSource = src
	cfg.NewTransport = func(ctx context.Context, mode capture.Mode, sampleRate int) (transport.Transport, error) {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		if ts.dialErr != nil {
			return nil, ts.dialErr
		}
		tr := ts.newTr()
		ts.transports = append(ts.transports, tr)
		return tr, nil
	}
	s, err := capture.New(cfg, ts.rec.callbacks())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ts.session = s
	return ts
}

func (ts *testSetup) transport(i int) *transportmock.Transport {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if i >= len(ts.transports) {
		return nil
	}
	return ts.transports[i]
}

func (ts *testSetup) transportCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.transports)
}

// ── Streaming mode ────────────────────────────────────────────────────────────

func TestSession_StreamingFlow(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		ScriptedFrames: toneFrames(4, 4096, 16000, 0.3),
	}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:   16000,
		ChunkSamples: 1024,
	})

	id := ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	if id == "" {
		t.Fatal("Start() returned empty session ID")
	}

	// Active is entered on the first successful send.
	waitFor(t, func() bool { return ts.rec.sawState(capture.StateActive) }, "Active state")
	tr := ts.transport(0)
	if tr == nil {
		t.Fatal("no transport opened")
	}

	tr.Emit(transport.Event{Type: transport.EventPartial, Text: "hel"})
	tr.Emit(transport.Event{Type: transport.EventFinal, Text: "hello."})
	waitFor(t, func() bool {
		_, _, finals, _ := ts.rec.snapshot()
		return len(finals) == 1
	}, "final transcript delivery")

	ts.session.Stop()
	waitIdle(t, ts.session, ts.rec)

	states, partials, finals, kinds := ts.rec.snapshot()
	want := []capture.State{capture.StateAcquiring, capture.StateActive, capture.StateFinalizing, capture.StateIdle}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if len(partials) != 1 || partials[0] != "hel" {
		t.Errorf("partials = %v, want [hel]", partials)
	}
	if len(finals) != 1 || finals[0] != "hello." {
		t.Errorf("finals = %v, want [hello.]", finals)
	}
	if len(kinds) != 0 {
		t.Errorf("error callbacks = %v, want none", kinds)
	}
	if got := ts.session.AccumulatedText(); got != "hello." {
		t.Errorf("AccumulatedText() = %q, want hello.", got)
	}
	if !tr.Closed() || tr.Aborted() {
		t.Error("clean stop should Close the transport, not Abort it")
	}
	if src.CallCountClose == 0 {
		t.Error("source was never closed")
	}

	// All scripted audio was sent: 4 frames of 4096 samples, 2 bytes each.
	if got := tr.SentBytes(); got != 4*4096*2 {
		t.Errorf("transport received %d bytes, want %d", got, 4*4096*2)
	}
}

func TestSession_StreamingResamplesBeforeSend(t *testing.T) {
	t.Parallel()

	// One second at 44.1 kHz must arrive as one second at 16 kHz.
	src := &audiomock.Source{
		ScriptedFrames:   toneFrames(1, 44100, 44100, 0.3),
		CloseAfterScript: true,
	}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:   16000,
		ChunkSamples: 1024,
	})

	ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitIdle(t, ts.session, ts.rec)

	if got := ts.transport(0).SentBytes(); got != 16000*2 {
		t.Errorf("transport received %d bytes, want %d", got, 16000*2)
	}
}

func TestSession_TransportFailureReported(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{ScriptedFrames: toneFrames(2, 4096, 16000, 0.3)}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:   16000,
		ChunkSamples: 1024,
	})

	ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitFor(t, func() bool { return ts.rec.sawState(capture.StateActive) }, "Active state")

	ts.transport(0).Emit(transport.Event{
		Type: transport.EventFailed,
		Err:  fmt.Errorf("%w: read: connection reset", stream.ErrConnectionLost),
	})
	waitIdle(t, ts.session, ts.rec)

	_, _, _, kinds := ts.rec.snapshot()
	if len(kinds) != 1 || kinds[0] != capture.KindConnectionLost {
		t.Errorf("error kinds = %v, want [ConnectionLost]", kinds)
	}
	if !ts.rec.sawState(capture.StateError) {
		t.Error("session never visited Error state")
	}
	if !errors.Is(ts.session.LastError(), stream.ErrConnectionLost) {
		t.Errorf("LastError() = %v, want ErrConnectionLost", ts.session.LastError())
	}
}

// ── Batch mode ────────────────────────────────────────────────────────────────

func TestSession_BatchFlow(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		ScriptedFrames:   toneFrames(4, 4096, 16000, 0.3),
		CloseAfterScript: true,
	}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:      16000,
		ChunkSamples:    1024,
		MinPayloadBytes: 1,
	})
	ts.newTr = func() *transportmock.Transport {
		tr := transportmock.NewTransport()
		tr.OnClose = func(f *transportmock.Transport) {
			f.Terminate(transport.Event{Type: transport.EventFinal, Text: "the batch transcript."})
		}
		return tr
	}

	ts.session.Start(capture.Options{Mode: capture.ModeBatch})
	waitIdle(t, ts.session, ts.rec)

	states, partials, finals, kinds := ts.rec.snapshot()
	want := []capture.State{capture.StateAcquiring, capture.StateActive, capture.StateFinalizing, capture.StateIdle}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if len(partials) != 0 {
		t.Errorf("partials = %v, want none in batch mode", partials)
	}
	if len(finals) != 1 || finals[0] != "the batch transcript." {
		t.Errorf("finals = %v, want the batch transcript", finals)
	}
	if len(kinds) != 0 {
		t.Errorf("error callbacks = %v, want none", kinds)
	}
	if got := ts.session.AccumulatedText(); got != "the batch transcript." {
		t.Errorf("AccumulatedText() = %q", got)
	}
}

func TestSession_BatchRejectsSilence(t *testing.T) {
	t.Parallel()

	// Plenty of audio, none of it above the speech threshold.
	src := &audiomock.Source{
		ScriptedFrames:   toneFrames(8, 4096, 16000, 0.001),
		CloseAfterScript: true,
	}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:      16000,
		ChunkSamples:    1024,
		MinPayloadBytes: 1,
	})

	ts.session.Start(capture.Options{Mode: capture.ModeBatch})
	waitIdle(t, ts.session, ts.rec)

	_, _, finals, kinds := ts.rec.snapshot()
	if len(kinds) != 1 || kinds[0] != capture.KindNoSpeechDetected {
		t.Errorf("error kinds = %v, want [NoSpeechDetected]", kinds)
	}
	if len(finals) != 0 {
		t.Errorf("finals = %v, want none", finals)
	}
	// The rejection must not spend a transcription exchange.
	tr := ts.transport(0)
	if !tr.Aborted() || tr.Closed() {
		t.Error("silent recording should Abort the transport, not Close it")
	}
}

func TestSession_BatchRejectsTooShort(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		ScriptedFrames:   toneFrames(1, 2048, 16000, 0.3),
		CloseAfterScript: true,
	}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:      16000,
		ChunkSamples:    256,
		MinPayloadBytes: 1 << 20,
	})

	ts.session.Start(capture.Options{Mode: capture.ModeBatch})
	waitIdle(t, ts.session, ts.rec)

	_, _, _, kinds := ts.rec.snapshot()
	if len(kinds) != 1 || kinds[0] != capture.KindRecordingTooShort {
		t.Errorf("error kinds = %v, want [RecordingTooShort]", kinds)
	}
	if tr := ts.transport(0); !tr.Aborted() {
		t.Error("too-short recording should Abort the transport")
	}
}

func TestSession_BatchAutoStopsAtMaxDuration(t *testing.T) {
	t.Parallel()

	// The source never drains on its own; only the duration bound stops it.
	src := &audiomock.Source{ScriptedFrames: toneFrames(4, 4096, 16000, 0.3)}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:      16000,
		ChunkSamples:    1024,
		MinPayloadBytes: 1,
	})
	ts.newTr = func() *transportmock.Transport {
		tr := transportmock.NewTransport()
		tr.OnClose = func(f *transportmock.Transport) {
			f.Terminate(transport.Event{Type: transport.EventFinal, Text: "bounded."})
		}
		return tr
	}

	ts.session.Start(capture.Options{Mode: capture.ModeBatch, MaxDuration: 50 * time.Millisecond})
	waitIdle(t, ts.session, ts.rec)

	_, _, finals, kinds := ts.rec.snapshot()
	if len(finals) != 1 || finals[0] != "bounded." {
		t.Errorf("finals = %v, want [bounded.]", finals)
	}
	if len(kinds) != 0 {
		t.Errorf("error callbacks = %v, want none", kinds)
	}
}

func TestSession_StopDuringFinalizeDiscardsResult(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{ScriptedFrames: toneFrames(4, 4096, 16000, 0.3)}
	release := make(chan struct{})
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:      16000,
		ChunkSamples:    1024,
		MinPayloadBytes: 1,
	})
	ts.newTr = func() *transportmock.Transport {
		tr := transportmock.NewTransport()
		tr.OnClose = func(f *transportmock.Transport) {
			// Simulate a slow transcription exchange.
			<-release
			f.Terminate(transport.Event{Type: transport.EventFinal, Text: "too late."})
		}
		return tr
	}

	ts.session.Start(capture.Options{Mode: capture.ModeBatch})
	waitFor(t, func() bool { return ts.rec.sawState(capture.StateActive) }, "Active state")

	ts.session.Stop()
	waitFor(t, func() bool { return ts.rec.sawState(capture.StateFinalizing) }, "Finalizing state")

	// Second stop while the exchange is in flight: discard the result.
	ts.session.Stop()
	close(release)
	waitIdle(t, ts.session, ts.rec)

	_, _, finals, kinds := ts.rec.snapshot()
	if len(finals) != 0 {
		t.Errorf("finals = %v, want none after discard", finals)
	}
	if len(kinds) != 0 {
		t.Errorf("error callbacks = %v, want none after discard", kinds)
	}
	if ts.session.AccumulatedText() != "" {
		t.Errorf("AccumulatedText() = %q, want empty", ts.session.AccumulatedText())
	}
	if !ts.transport(0).Aborted() {
		t.Error("discard should Abort the in-flight transport")
	}
}

// ── Acquisition and lifecycle ─────────────────────────────────────────────────

func TestSession_PermissionDeniedNeverDials(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{
		OpenError: fmt.Errorf("getUserMedia: %w", audio.ErrPermissionDenied),
	}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{})

	ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitIdle(t, ts.session, ts.rec)

	states, _, _, kinds := ts.rec.snapshot()
	if len(kinds) != 1 || kinds[0] != capture.KindPermissionDenied {
		t.Errorf("error kinds = %v, want [PermissionDenied]", kinds)
	}
	want := []capture.State{capture.StateAcquiring, capture.StateError, capture.StateIdle}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if n := ts.transportCount(); n != 0 {
		t.Errorf("transports opened = %d, want 0", n)
	}
	if src.CallCountClose == 0 {
		t.Error("source was never closed after failed acquisition")
	}
}

func TestSession_TokenFetchFailureReported(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{ScriptedFrames: toneFrames(1, 1024, 16000, 0.3)}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{})
	ts.dialErr = fmt.Errorf("%w: unexpected status 500", stream.ErrTokenFetch)

	ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitIdle(t, ts.session, ts.rec)

	_, _, _, kinds := ts.rec.snapshot()
	if len(kinds) != 1 || kinds[0] != capture.KindTokenFetchFailed {
		t.Errorf("error kinds = %v, want [TokenFetchFailed]", kinds)
	}
	if src.CallCountClose == 0 {
		t.Error("source left open after dial failure")
	}
}

func TestSession_StopDuringAcquisitionIsSilent(t *testing.T) {
	t.Parallel()

	// Open blocks on a permission prompt the user never answers.
	src := &audiomock.Source{OpenGate: make(chan struct{})}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{})

	ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitFor(t, func() bool { return ts.session.State() == capture.StateAcquiring }, "Acquiring state")

	ts.session.Stop()
	waitIdle(t, ts.session, ts.rec)

	_, _, finals, kinds := ts.rec.snapshot()
	if len(kinds) != 0 {
		t.Errorf("error callbacks = %v, want none for user-initiated stop", kinds)
	}
	if len(finals) != 0 {
		t.Errorf("finals = %v, want none", finals)
	}
	if n := ts.transportCount(); n != 0 {
		t.Errorf("transports opened = %d, want 0", n)
	}
}

func TestSession_StopWhenIdleIsNoOp(t *testing.T) {
	t.Parallel()

	ts := newTestSetup(t, func() audio.Source { return &audiomock.Source{} }, capture.Config{})
	ts.session.Stop()
	ts.session.Stop()

	states, _, _, kinds := ts.rec.snapshot()
	if len(states) != 0 || len(kinds) != 0 {
		t.Errorf("callbacks fired on idle Stop: states=%v kinds=%v", states, kinds)
	}
	if ts.session.State() != capture.StateIdle {
		t.Errorf("State() = %v, want Idle", ts.session.State())
	}
}

func TestSession_RestartSupersedesLiveAttempt(t *testing.T) {
	t.Parallel()

	// First attempt hangs in acquisition; the restart must supersede it
	// without any callback from the first ever reaching the consumer.
	blocked := &audiomock.Source{OpenGate: make(chan struct{})}
	healthy := &audiomock.Source{ScriptedFrames: toneFrames(2, 4096, 16000, 0.3)}
	sources := []audio.Source{blocked, healthy}
	var srcMu sync.Mutex
	ts := newTestSetup(t, func() audio.Source {
		srcMu.Lock()
		defer srcMu.Unlock()
		src := sources[0]
		sources = sources[1:]
		return src
	}, capture.Config{TargetRate: 16000, ChunkSamples: 1024})

	id1 := ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitFor(t, func() bool { return ts.session.State() == capture.StateAcquiring }, "first attempt Acquiring")

	id2 := ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	if id1 == id2 {
		t.Error("restart should mint a fresh session ID")
	}

	waitFor(t, func() bool { return ts.rec.sawState(capture.StateActive) }, "second attempt Active")
	waitFor(t, func() bool {
		_, closes := blocked.Counts()
		return closes > 0
	}, "superseded source to be released")

	ts.session.Stop()
	waitIdle(t, ts.session, ts.rec)

	_, _, _, kinds := ts.rec.snapshot()
	if len(kinds) != 0 {
		t.Errorf("error callbacks = %v, want none from the superseded attempt", kinds)
	}
	if n := ts.transportCount(); n != 1 {
		t.Errorf("transports opened = %d, want 1 (superseded attempt never dialled)", n)
	}
}

func TestSession_AccumulatesMultipleFinals(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{ScriptedFrames: toneFrames(2, 4096, 16000, 0.3)}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:   16000,
		ChunkSamples: 1024,
	})

	ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitFor(t, func() bool { return ts.rec.sawState(capture.StateActive) }, "Active state")

	tr := ts.transport(0)
	tr.Emit(transport.Event{Type: transport.EventFinal, Text: "first sentence."})
	tr.Emit(transport.Event{Type: transport.EventFinal, Text: "second sentence."})
	waitFor(t, func() bool {
		_, _, finals, _ := ts.rec.snapshot()
		return len(finals) == 2
	}, "both finals")

	ts.session.Stop()
	waitIdle(t, ts.session, ts.rec)

	if got := ts.session.AccumulatedText(); got != "first sentence. second sentence." {
		t.Errorf("AccumulatedText() = %q, want fragments joined in order", got)
	}
}

func TestSession_CorrectsFinalsOnly(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{ScriptedFrames: toneFrames(2, 4096, 16000, 0.3)}
	ts := newTestSetup(t, func() audio.Source { return src }, capture.Config{
		TargetRate:   16000,
		ChunkSamples: 1024,
		CorrectFinal: func(text string) string { return strings.ToUpper(text) },
	})

	ts.session.Start(capture.Options{Mode: capture.ModeStreaming})
	waitFor(t, func() bool { return ts.rec.sawState(capture.StateActive) }, "Active state")

	tr := ts.transport(0)
	tr.Emit(transport.Event{Type: transport.EventPartial, Text: "raw partial"})
	tr.Emit(transport.Event{Type: transport.EventFinal, Text: "raw final."})
	waitFor(t, func() bool {
		_, _, finals, _ := ts.rec.snapshot()
		return len(finals) == 1
	}, "final delivery")

	ts.session.Stop()
	waitIdle(t, ts.session, ts.rec)

	_, partials, finals, _ := ts.rec.snapshot()
	if len(partials) != 1 || partials[0] != "raw partial" {
		t.Errorf("partials = %v, want untouched [raw partial]", partials)
	}
	if len(finals) != 1 || finals[0] != "RAW FINAL." {
		t.Errorf("finals = %v, want corrected [RAW FINAL.]", finals)
	}
	if got := ts.session.AccumulatedText(); got != "RAW FINAL." {
		t.Errorf("AccumulatedText() = %q, want corrected text", got)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := capture.New(capture.Config{}, capture.Callbacks{}); err == nil {
		t.Error("expected error for missing NewSource")
	}
	if _, err := capture.New(capture.Config{
		NewSource: func() audio.Source { return &audiomock.Source{} },
	}, capture.Callbacks{}); err == nil {
		t.Error("expected error for missing NewTransport")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want capture.ErrorKind
	}{
		{fmt.Errorf("open: %w", audio.ErrPermissionDenied), capture.KindPermissionDenied},
		{fmt.Errorf("open: %w", audio.ErrDeviceUnavailable), capture.KindDeviceUnavailable},
		{fmt.Errorf("%w: status 500", stream.ErrTokenFetch), capture.KindTokenFetchFailed},
		{fmt.Errorf("%w: reset", stream.ErrConnectionLost), capture.KindConnectionLost},
		{capture.ErrNoSpeech, capture.KindNoSpeechDetected},
		{capture.ErrTooShort, capture.KindRecordingTooShort},
		{errors.New("something else"), capture.KindTranscriptionFailed},
	}
	for _, tc := range cases {
		if got := capture.Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
