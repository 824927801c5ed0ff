// Package capture implements the orchestrating state machine of the dictation
// pipeline. A [Session] wires an audio source, the encoding stage, and a
// transcript transport together, owns their lifetimes, and exposes the public
// callback contract consumed by the UI layer.
//
// A Session moves through Idle → Acquiring → Active → Finalizing and back to
// Idle; Error is a transient state visited on the way back to Idle after a
// failed attempt. Exactly one capture attempt is live at a time: starting a
// new one implicitly stops its predecessor, and every attempt owns a fresh
// source and transport rather than reusing prior handles.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/johnmichaelkuczynski/dictate/internal/observe"
	"github.com/johnmichaelkuczynski/dictate/internal/silence"
	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport"
)

// Defaults applied when Config or Options leave a knob unset.
const (
	defaultTargetRate   = 16000
	defaultChunkSamples = 4096
	defaultMaxDuration  = 60 * time.Second
	defaultMinPayload   = 8000 // bytes of PCM16 at 16 kHz ≈ 250 ms
)

// State is the lifecycle state of a capture session.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateActive
	StateFinalizing
	StateError
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAcquiring:
		return "Acquiring"
	case StateActive:
		return "Active"
	case StateFinalizing:
		return "Finalizing"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Mode selects the transport strategy for a capture attempt.
type Mode string

const (
	// ModeStreaming keeps a persistent duplex channel open and yields
	// incremental partial/final transcripts.
	ModeStreaming Mode = "streaming"

	// ModeBatch records until stop or the maximum duration, then performs a
	// single request/response transcription exchange.
	ModeBatch Mode = "batch"
)

// Options configures one capture attempt.
type Options struct {
	// Mode selects streaming or batch transport. Defaults to streaming.
	Mode Mode

	// MaxDuration bounds a batch recording; the session auto-stops when it
	// elapses. Ignored in streaming mode. Zero means the configured default.
	MaxDuration time.Duration

	// SampleRateHint is the preferred capture rate requested from the source.
	// Best-effort; the source may deliver a different rate. Zero means the
	// configured target rate.
	SampleRateHint int
}

// Callbacks is the contract exposed to the consumer. Any field may be nil.
// Callbacks are invoked from internal goroutines and must not block for long.
type Callbacks struct {
	// OnPartial receives provisional transcript text that later events may
	// supersede. Batch mode never invokes it.
	OnPartial func(text string)

	// OnFinal receives authoritative transcript text. Each invocation appends
	// to the session's accumulated text.
	OnFinal func(text string)

	// OnError receives the normalised taxonomy kind and a human-readable
	// message. At most one invocation per failed attempt, always followed by
	// a reset to Idle.
	OnError func(kind ErrorKind, message string)

	// OnStateChange observes every state transition.
	OnStateChange func(state State)
}

// TransportFactory opens a transport for one capture attempt. sampleRate is
// the rate of the PCM16 audio that will be sent.
type TransportFactory func(ctx context.Context, mode Mode, sampleRate int) (transport.Transport, error)

// Config wires a Session's collaborators and tuning knobs.
type Config struct {
	// NewSource constructs a fresh audio source per attempt. Required.
	NewSource func() audio.Source

	// NewTransport opens a fresh transport per attempt. Required.
	NewTransport TransportFactory

	// TargetRate is the sample rate sent to transports, in Hz.
	TargetRate int

	// ChunkSamples is the number of samples per encoded transport unit.
	ChunkSamples int

	// MaxDuration is the default batch recording bound.
	MaxDuration time.Duration

	// SilenceThreshold is the RMS energy level a batch recording must cross
	// at least once to count as speech. Zero means the gate default.
	SilenceThreshold float64

	// MinPayloadBytes is the smallest encoded payload worth transcribing.
	MinPayloadBytes int

	// CorrectFinal, when non-nil, post-processes each final transcript
	// fragment before delivery and accumulation. Used for custom-vocabulary
	// correction; partial fragments are never corrected.
	CorrectFinal func(text string) string

	// Metrics receives instrumentation. Nil disables it.
	Metrics *observe.Metrics
}

// Session is the capture orchestrator. Create one with [New]; it is safe for
// concurrent use.
type Session struct {
	cfg Config
	cb  Callbacks

	mu          sync.Mutex
	state       State
	gen         uint64
	att         *attempt
	accumulated []string
	lastErr     error
}

// New validates cfg, fills defaults, and returns an Idle session.
func New(cfg Config, cb Callbacks) (*Session, error) {
	if cfg.NewSource == nil {
		return nil, errors.New("capture: Config.NewSource is required")
	}
	if cfg.NewTransport == nil {
		return nil, errors.New("capture: Config.NewTransport is required")
	}
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = defaultTargetRate
	}
	if cfg.ChunkSamples <= 0 {
		cfg.ChunkSamples = defaultChunkSamples
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.MinPayloadBytes <= 0 {
		cfg.MinPayloadBytes = defaultMinPayload
	}
	return &Session{cfg: cfg, cb: cb, state: StateIdle}, nil
}

// State reports the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccumulatedText returns the finalized transcript fragments of the current
// or most recent attempt, joined in arrival order. Partial results never
// appear here.
func (s *Session) AccumulatedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := ""
	for i, t := range s.accumulated {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}

// LastError returns the terminal error of the most recent failed attempt, or
// nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start begins a new capture attempt and returns its opaque session ID. If an
// attempt is already live it is stopped first; its in-flight completions are
// discarded, never delivered alongside the new attempt's. Start returns
// immediately — acquisition (which may suspend on an OS permission prompt)
// proceeds in the background.
func (s *Session) Start(opts Options) string {
	if opts.Mode == "" {
		opts.Mode = ModeStreaming
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{
		s:            s,
		id:           uuid.NewString(),
		mode:         opts.Mode,
		targetRate:   s.cfg.TargetRate,
		chunkSamples: s.cfg.ChunkSamples,
		minPayload:   s.cfg.MinPayloadBytes,
		maxDur:       opts.MaxDuration,
		rateHint:     opts.SampleRateHint,
		ctx:          ctx,
		cancel:       cancel,
		source:       s.cfg.NewSource(),
		started:      time.Now(),
	}
	if a.maxDur <= 0 {
		a.maxDur = s.cfg.MaxDuration
	}
	if a.rateHint <= 0 {
		a.rateHint = s.cfg.TargetRate
	}
	if a.mode == ModeBatch {
		a.gate = silence.New(s.cfg.SilenceThreshold, silence.DefaultWindowSamples)
	}

	s.mu.Lock()
	if old := s.att; old != nil {
		// Implicit stop of the superseded attempt. Its generation is stale
		// from here on, so nothing it produces reaches the consumer.
		go old.requestStop()
	}
	s.gen++
	a.gen = s.gen
	s.att = a
	s.accumulated = nil
	s.lastErr = nil
	s.state = StateAcquiring
	onState := s.cb.OnStateChange
	s.mu.Unlock()

	if m := s.cfg.Metrics; m != nil {
		m.SessionsStarted.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("mode", string(a.mode))))
		m.ActiveSessions.Add(context.Background(), 1)
	}
	if onState != nil {
		onState(StateAcquiring)
	}

	slog.Info("capture attempt starting", "session_id", a.id, "mode", a.mode)
	go a.run()
	return a.id
}

// Stop ends the live attempt, if any. Idempotent: calling it in Idle or
// repeatedly is a no-op with no callbacks. A Stop issued while a batch
// finalize exchange is already in flight cancels the exchange and suppresses
// delivery of any later-arriving response.
func (s *Session) Stop() {
	s.mu.Lock()
	a := s.att
	finalizing := s.state == StateFinalizing
	s.mu.Unlock()

	if a == nil {
		return
	}
	if finalizing {
		a.discard()
		return
	}
	a.requestStop()
}

// ─── attempt ─────────────────────────────────────────────────────────────────

// attempt owns one capture lifecycle end to end. All teardown runs
// sequentially on the run goroutine; Stop and the auto-stop timer only signal
// it via the attempt context.
type attempt struct {
	s  *Session
	id string

	gen          uint64
	mode         Mode
	targetRate   int
	chunkSamples int
	minPayload   int
	maxDur       time.Duration
	rateHint     int

	ctx    context.Context
	cancel context.CancelFunc
	source audio.Source
	gate   *silence.Gate

	userStop  atomic.Bool
	discarded atomic.Bool

	trMu sync.Mutex
	tr   transport.Transport

	// transportErr is written by the dispatcher goroutine before it cancels
	// the attempt, and read by run only after the dispatcher has exited.
	transportErr    error
	transportFailed atomic.Bool

	sentBytes int64
	started   time.Time
}

// requestStop signals the run goroutine to begin teardown. Idempotent.
func (a *attempt) requestStop() {
	a.userStop.Store(true)
	a.cancel()
}

// discard suppresses all further delivery and cancels any in-flight finalize
// exchange. Used when Stop arrives during Finalizing, and for superseded
// attempts.
func (a *attempt) discard() {
	a.discarded.Store(true)
	a.cancel()
	a.trMu.Lock()
	tr := a.tr
	a.trMu.Unlock()
	if tr != nil {
		_ = tr.Abort()
	}
}

func (a *attempt) setTransport(tr transport.Transport) {
	a.trMu.Lock()
	a.tr = tr
	a.trMu.Unlock()
}

// run drives the whole attempt: acquire, dial, pump, finalize, complete.
func (a *attempt) run() {
	s := a.s

	frames, err := a.source.Open(a.ctx, audio.Constraints{
		SampleRate:       a.rateHint,
		Channels:         1,
		NoiseSuppression: true,
		EchoCancellation: true,
		AutoGainControl:  true,
	})
	if err != nil {
		_ = a.source.Close()
		if a.userStop.Load() || errors.Is(err, context.Canceled) {
			s.completeAttempt(a, "cancelled")
			return
		}
		s.failAttempt(a, err)
		return
	}

	tr, err := s.cfg.NewTransport(a.ctx, a.mode, a.targetRate)
	if err != nil {
		_ = a.source.Close()
		audio.Drain(frames)
		if a.userStop.Load() || errors.Is(err, context.Canceled) {
			s.completeAttempt(a, "cancelled")
			return
		}
		s.failAttempt(a, err)
		return
	}
	a.setTransport(tr)

	dispatcherDone := make(chan struct{})
	go a.dispatch(tr.Events(), dispatcherDone)

	var timer *time.Timer
	if a.mode == ModeBatch {
		s.setState(a.gen, StateActive)
		if a.maxDur > 0 {
			timer = time.AfterFunc(a.maxDur, a.requestStop)
		}
	}

	a.pump(frames, tr)

	if timer != nil {
		timer.Stop()
	}
	s.setState(a.gen, StateFinalizing)

	var rejectErr error
	switch {
	case a.transportFailed.Load():
		_ = tr.Abort()
	case a.mode == ModeBatch && !a.gate.HasSpeech():
		rejectErr = ErrNoSpeech
		_ = tr.Abort()
	case a.mode == ModeBatch && a.sentBytes < int64(a.minPayload):
		rejectErr = ErrTooShort
		_ = tr.Abort()
	default:
		closeCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		_ = tr.Close(closeCtx)
		cancel()
	}

	<-dispatcherDone
	_ = a.source.Close()

	switch {
	case a.discarded.Load():
		s.completeAttempt(a, "cancelled")
	case rejectErr != nil:
		s.failAttempt(a, rejectErr)
	case a.transportFailed.Load():
		s.failAttempt(a, a.transportErr)
	default:
		s.completeAttempt(a, "completed")
	}
}

// pump converts captured frames to transport units: downmix to mono, resample
// to the transport rate by nearest-sample decimation, quantise to PCM16, and
// send in fixed-size units. Returns when the source drains, the attempt is
// cancelled, or the transport refuses a send. Any encoded remainder is
// flushed on the way out.
func (a *attempt) pump(frames <-chan audio.Frame, tr transport.Transport) {
	s := a.s
	chunkBytes := a.chunkSamples * 2
	var buf []byte
	activeSet := a.mode == ModeBatch

	for {
		select {
		case <-a.ctx.Done():
			a.flush(tr, buf)
			return
		case f, ok := <-frames:
			if !ok {
				// Source drained on its own (e.g. file replay finished):
				// proceed to finalize as if stopped.
				a.flush(tr, buf)
				return
			}

			samples := f.Samples
			if f.Channels > 1 {
				samples = audio.DownmixMono(samples, f.Channels)
			}
			if a.gate != nil {
				a.gate.Observe(audio.Frame{Samples: samples, SampleRate: f.SampleRate, Channels: 1})
			}
			samples = audio.Resample(samples, f.SampleRate, a.targetRate)
			buf = append(buf, audio.QuantizePCM16(samples)...)

			for len(buf) >= chunkBytes {
				unit := make([]byte, chunkBytes)
				copy(unit, buf)
				buf = buf[chunkBytes:]
				if err := tr.Send(unit); err != nil {
					return
				}
				a.sentBytes += int64(chunkBytes)
				if m := s.cfg.Metrics; m != nil {
					m.AudioBytesSent.Add(context.Background(), int64(chunkBytes),
						metric.WithAttributes(attribute.String("mode", string(a.mode))))
				}
				if !activeSet {
					s.setState(a.gen, StateActive)
					activeSet = true
				}
			}
		}
	}
}

// flush sends the sub-unit remainder, if any.
func (a *attempt) flush(tr transport.Transport, buf []byte) {
	if len(buf) == 0 {
		return
	}
	if err := tr.Send(buf); err == nil {
		a.sentBytes += int64(len(buf))
	}
}

// dispatch forwards transport events to the consumer in receipt order. A
// partial that arrives once the attempt has left Active (i.e. after its
// utterance window finalized, or post-stop) is discarded; finals always
// append. A Failed event marks the attempt and cancels it — the session
// treats every transport failure as terminal.
func (a *attempt) dispatch(events <-chan transport.Event, done chan struct{}) {
	defer close(done)
	s := a.s

	for ev := range events {
		if a.discarded.Load() {
			continue
		}
		if m := s.cfg.Metrics; m != nil && (ev.Type == transport.EventPartial || ev.Type == transport.EventFinal) {
			m.TranscriptEvents.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("type", ev.Type.String())))
		}
		switch ev.Type {
		case transport.EventPartial:
			s.deliverPartial(a.gen, ev.Text)
		case transport.EventFinal:
			s.deliverFinal(a.gen, ev.Text)
		case transport.EventFailed:
			a.transportErr = ev.Err
			a.transportFailed.Store(true)
			a.cancel()
		case transport.EventClosed:
			// Terminal marker; the channel closes right after.
		}
	}
}

// ─── session-side delivery (generation-guarded) ──────────────────────────────

// setState transitions the session state on behalf of attempt gen. Stale
// generations are ignored, so a superseded attempt can never move the state
// machine.
func (s *Session) setState(gen uint64, st State) {
	s.mu.Lock()
	if s.att == nil || s.att.gen != gen || s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	onState := s.cb.OnStateChange
	s.mu.Unlock()
	if onState != nil {
		onState(st)
	}
}

// deliverPartial forwards provisional text while the attempt is current and
// Active. Partials never touch the accumulated text.
func (s *Session) deliverPartial(gen uint64, text string) {
	s.mu.Lock()
	if s.att == nil || s.att.gen != gen || s.state != StateActive {
		s.mu.Unlock()
		return
	}
	onPartial := s.cb.OnPartial
	s.mu.Unlock()
	if onPartial != nil {
		onPartial(text)
	}
}

// deliverFinal appends authoritative text and forwards it. Finals are
// accepted in Active and Finalizing (the batch result arrives during
// finalize).
func (s *Session) deliverFinal(gen uint64, text string) {
	if s.cfg.CorrectFinal != nil {
		text = s.cfg.CorrectFinal(text)
	}
	s.mu.Lock()
	if s.att == nil || s.att.gen != gen {
		s.mu.Unlock()
		return
	}
	s.accumulated = append(s.accumulated, text)
	onFinal := s.cb.OnFinal
	s.mu.Unlock()
	if onFinal != nil {
		onFinal(text)
	}
}

// completeAttempt retires a finished attempt and returns the session to Idle.
// Superseded attempts are retired silently.
func (s *Session) completeAttempt(a *attempt, outcome string) {
	s.mu.Lock()
	if s.att != a {
		s.mu.Unlock()
		s.recordOutcome(a, "superseded")
		return
	}
	s.att = nil
	s.state = StateIdle
	onState := s.cb.OnStateChange
	s.mu.Unlock()

	s.recordOutcome(a, outcome)
	slog.Info("capture attempt finished", "session_id", a.id, "outcome", outcome)
	if onState != nil {
		onState(StateIdle)
	}
}

// failAttempt retires a failed attempt: Error state, exactly one OnError with
// the normalised kind, then reset to Idle so the consumer can retry
// immediately. No automatic retry — every failure is terminal for its
// attempt.
func (s *Session) failAttempt(a *attempt, err error) {
	kind := Classify(err)

	s.mu.Lock()
	if s.att != a {
		s.mu.Unlock()
		s.recordOutcome(a, "superseded")
		return
	}
	s.att = nil
	s.lastErr = err
	s.state = StateError
	onState := s.cb.OnStateChange
	onError := s.cb.OnError
	s.mu.Unlock()

	s.recordOutcome(a, string(kind))
	slog.Warn("capture attempt failed", "session_id", a.id, "kind", kind, "err", err)

	if onState != nil {
		onState(StateError)
	}
	if onError != nil {
		onError(kind, err.Error())
	}

	s.mu.Lock()
	backToIdle := s.att == nil && s.state == StateError
	if backToIdle {
		s.state = StateIdle
	}
	s.mu.Unlock()
	if backToIdle && onState != nil {
		onState(StateIdle)
	}
}

func (s *Session) recordOutcome(a *attempt, outcome string) {
	m := s.cfg.Metrics
	if m == nil {
		return
	}
	ctx := context.Background()
	m.ActiveSessions.Add(ctx, -1)
	m.SessionOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", string(a.mode)),
		attribute.String("outcome", outcome),
	))
	m.CaptureDuration.Record(ctx, time.Since(a.started).Seconds(),
		metric.WithAttributes(attribute.String("mode", string(a.mode))))
}
