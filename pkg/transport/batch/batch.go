// Package batch implements the batch [transport.Transport]: audio accumulates
// in a WAV container until the session stops, then a single multipart HTTP
// request carries the whole recording to the transcription endpoint and the
// JSON response yields exactly one final transcript event.
//
// This strategy produces no partial events. Any interim feedback a consumer
// shows before the response arrives is a synthetic placeholder with no text
// content guarantee.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/johnmichaelkuczynski/dictate/pkg/audio"
	"github.com/johnmichaelkuczynski/dictate/pkg/transport"
)

// Sentinel errors surfaced by this transport. Callers classify with
// [errors.Is].
var (
	// ErrTranscriptionFailed indicates the HTTP exchange failed or the
	// backend reported an error.
	ErrTranscriptionFailed = errors.New("batch: transcription failed")

	// ErrEmptyResult indicates the backend returned an empty or
	// whitespace-only transcript.
	ErrEmptyResult = errors.New("batch: empty transcript")
)

// Config describes the transcription endpoint and the recording format.
type Config struct {
	// URL is the HTTP endpoint that accepts a multipart audio payload and
	// returns a JSON transcript.
	URL string

	// APIKey authenticates the request, when non-empty.
	APIKey string

	// SampleRate and Channels describe the PCM16 audio handed to Send.
	SampleRate int
	Channels   int

	// HTTPClient performs the finalize exchange. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client
}

// result is the JSON body of the transcription response.
type result struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transport accumulates one recording and transcribes it on Close. It
// implements [transport.Transport].
type Transport struct {
	cfg    Config
	client *http.Client
	events chan transport.Event

	mu     sync.Mutex
	enc    *audio.ContainerEncoder
	closed bool

	termOnce    sync.Once
	abortCtx    context.Context
	abortCancel context.CancelFunc
}

// New creates a batch transport ready to accept audio.
func New(cfg Config) *Transport {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	abortCtx, abortCancel := context.WithCancel(context.Background())
	return &Transport{
		cfg:         cfg,
		client:      client,
		events:      make(chan transport.Event, 4),
		enc:         audio.NewContainerEncoder(cfg.SampleRate, cfg.Channels),
		abortCtx:    abortCtx,
		abortCancel: abortCancel,
	}
}

// Send appends one PCM16 audio unit to the recording.
func (t *Transport) Send(chunk []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	t.enc.Write(chunk)
	return nil
}

// Events returns the transcript event stream: at most one Final or Failed,
// then Closed.
func (t *Transport) Events() <-chan transport.Event { return t.events }

// Close seals the container, performs the single transcription exchange, and
// emits the terminal events. Safe to call more than once; later calls are
// no-ops.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	blob, err := t.enc.Bytes()
	t.mu.Unlock()

	if err != nil {
		t.terminate(transport.Event{
			Type: transport.EventFailed,
			Err:  fmt.Errorf("%w: %v", ErrTranscriptionFailed, err),
		})
		return nil
	}

	// Honour both the caller's deadline and a later Abort.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.abortCtx, cancel)
	defer stop()

	text, err := t.transcribe(reqCtx, blob)
	switch {
	case t.abortCtx.Err() != nil:
		// Aborted while in flight: the response, success or failure, is stale.
		t.terminate()
	case err != nil:
		t.terminate(transport.Event{Type: transport.EventFailed, Err: err})
	default:
		t.terminate(transport.Event{Type: transport.EventFinal, Text: text})
	}
	return nil
}

// Abort discards the recording without issuing a request and cancels any
// in-flight exchange.
func (t *Transport) Abort() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.abortCancel()
	t.terminate()
	return nil
}

// terminate emits the given events followed by Closed, exactly once, and
// closes the stream.
func (t *Transport) terminate(evs ...transport.Event) {
	t.termOnce.Do(func() {
		for _, ev := range evs {
			t.events <- ev
		}
		t.events <- transport.Event{Type: transport.EventClosed}
		close(t.events)
	})
}

// transcribe performs the multipart POST and decodes the transcript.
func (t *Transport) transcribe(ctx context.Context, blob []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("%w: build payload: %v", ErrTranscriptionFailed, err)
	}
	if _, err := part.Write(blob); err != nil {
		return "", fmt.Errorf("%w: build payload: %v", ErrTranscriptionFailed, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: build payload: %v", ErrTranscriptionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTranscriptionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrTranscriptionFailed, resp.StatusCode)
	}

	var res result
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTranscriptionFailed, err)
	}
	if res.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrTranscriptionFailed, res.Error)
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", ErrEmptyResult
	}
	return res.Text, nil
}
