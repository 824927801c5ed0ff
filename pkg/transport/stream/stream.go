// Package stream implements the streaming [transport.Transport]: a persistent
// WebSocket duplex channel that accepts encoded audio continuously and yields
// incremental partial/final transcript events.
//
// Opening a transport is a two-step protocol: one HTTP round trip obtains a
// short-lived session token, then the WebSocket channel is dialled with the
// token and the negotiated sample rate as query parameters. Outbound messages
// are JSON objects carrying base64 audio; inbound messages are tagged JSON
// transcript results.
package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/johnmichaelkuczynski/dictate/pkg/transport"
)

// Sentinel errors surfaced by this transport. Callers classify with
// [errors.Is].
var (
	// ErrTokenFetch indicates the session-token round trip failed.
	ErrTokenFetch = errors.New("stream: token fetch failed")

	// ErrConnectionLost indicates the channel errored or closed before an
	// explicit stop.
	ErrConnectionLost = errors.New("stream: connection lost")
)

// State is the lifecycle state of a streaming transport.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Config describes the backend endpoints and audio format for a streaming
// session.
type Config struct {
	// TokenURL is the HTTP endpoint that issues short-lived session tokens.
	TokenURL string

	// StreamURL is the WebSocket endpoint for the duplex transcript channel.
	StreamURL string

	// APIKey authenticates the token request.
	APIKey string

	// SampleRate is the rate of the PCM16 audio that will be sent, in Hz.
	SampleRate int

	// HTTPClient performs the token round trip. Defaults to a client with a
	// 10 second timeout.
	HTTPClient *http.Client
}

// tokenResponse is the body of a successful token request.
type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// outboundMessage is the JSON envelope for audio sent over the channel.
type outboundMessage struct {
	AudioData string `json:"audio_data,omitempty"`

	// TerminateSession is set on the final control message of a session.
	TerminateSession bool `json:"terminate_session,omitempty"`
}

// inboundMessage is the JSON envelope for transcript results received over
// the channel.
type inboundMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
}

// Transport is a live streaming session. It implements
// [transport.Transport].
type Transport struct {
	conn   *websocket.Conn
	events chan transport.Event
	audio  chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu    sync.Mutex
	state State
}

// Dial obtains a session token, opens the duplex channel, and starts the
// session. The returned transport is ready to accept audio immediately.
func Dial(ctx context.Context, cfg Config) (*Transport, error) {
	if cfg.TokenURL == "" || cfg.StreamURL == "" {
		return nil, errors.New("stream: TokenURL and StreamURL must be set")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("stream: sample rate must be positive, got %d", cfg.SampleRate)
	}

	token, err := fetchToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	wsURL, err := buildStreamURL(cfg.StreamURL, cfg.SampleRate, token)
	if err != nil {
		return nil, fmt.Errorf("stream: build channel URL: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("stream: %w: dial: %v", ErrConnectionLost, err)
	}

	t := &Transport{
		conn:   conn,
		events: make(chan transport.Event, 64),
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
		state:  StateOpen,
	}

	t.wg.Add(2)
	go t.readLoop()
	go t.writeLoop()

	return t, nil
}

// fetchToken performs the token-issuing HTTP round trip.
func fetchToken(ctx context.Context, cfg Config) (string, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrTokenFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrTokenFetch, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrTokenFetch, err)
	}
	if tr.Token == "" {
		if tr.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrTokenFetch, tr.Error)
		}
		return "", fmt.Errorf("%w: empty token in response", ErrTokenFetch)
	}
	return tr.Token, nil
}

// buildStreamURL addresses the duplex channel by token and sample rate.
func buildStreamURL(raw string, sampleRate int, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// State reports the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	// Terminal states are sticky.
	if t.state != StateClosed && t.state != StateFailed {
		t.state = s
	}
	t.mu.Unlock()
}

// Send queues one PCM16 audio unit for transmission. Fire-and-forget: no
// per-unit acknowledgement is awaited.
func (t *Transport) Send(chunk []byte) error {
	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}
	select {
	case t.audio <- chunk:
		return nil
	case <-t.done:
		return transport.ErrClosed
	}
}

// Events returns the ordered transcript event stream.
func (t *Transport) Events() <-chan transport.Event { return t.events }

// Close sends the terminate-session control message (best-effort), closes the
// channel, and ends the session. Safe to call more than once.
func (t *Transport) Close(ctx context.Context) error {
	t.shutdown(false)
	return nil
}

// Abort tears the channel down immediately, without the terminate message.
func (t *Transport) Abort() error {
	t.shutdown(true)
	return nil
}

func (t *Transport) shutdown(abort bool) {
	t.once.Do(func() {
		t.setState(StateClosing)
		close(t.done)

		if !abort {
			// Best-effort terminate; the backend may already be gone.
			msg, _ := json.Marshal(outboundMessage{TerminateSession: true})
			writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = t.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
		}

		t.conn.Close(websocket.StatusNormalClosure, "session closed")
		t.wg.Wait()
	})
}

// writeLoop drains the audio queue, wrapping each unit in the outbound JSON
// envelope. Frames already queued when shutdown begins are flushed first.
func (t *Transport) writeLoop() {
	defer t.wg.Done()
	ctx := context.Background()
	for {
		select {
		case chunk := <-t.audio:
			if err := t.write(ctx, chunk); err != nil {
				return
			}
		case <-t.done:
			for {
				select {
				case chunk := <-t.audio:
					_ = t.write(ctx, chunk)
				default:
					return
				}
			}
		}
	}
}

func (t *Transport) write(ctx context.Context, chunk []byte) error {
	msg, err := json.Marshal(outboundMessage{
		AudioData: base64.StdEncoding.EncodeToString(chunk),
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.conn.Write(writeCtx, websocket.MessageText, msg)
}

// readLoop receives tagged JSON messages and forwards them as events in
// receipt order. It owns the terminal event: Closed after an explicit stop,
// Failed on an unexpected channel error.
func (t *Transport) readLoop() {
	defer t.wg.Done()
	defer close(t.events)

	for {
		_, data, err := t.conn.Read(context.Background())
		if err != nil {
			select {
			case <-t.done:
				// Explicit stop or abort.
				t.setState(StateClosed)
				t.emit(transport.Event{Type: transport.EventClosed})
			default:
				t.setState(StateFailed)
				t.emit(transport.Event{
					Type: transport.EventFailed,
					Err:  fmt.Errorf("%w: %v", ErrConnectionLost, err),
				})
			}
			return
		}

		ev, ok := parseInbound(data)
		if !ok {
			continue
		}
		t.emit(ev)
	}
}

// emit delivers an event unless the consumer has stopped draining after
// shutdown, in which case the event is dropped rather than blocking forever.
func (t *Transport) emit(ev transport.Event) {
	select {
	case t.events <- ev:
	case <-t.done:
		select {
		case t.events <- ev:
		default:
		}
	}
}

// parseInbound maps a raw channel message to a transcript event. Messages
// with an unknown tag or no text are ignored.
func parseInbound(data []byte) (transport.Event, bool) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return transport.Event{}, false
	}
	switch msg.MessageType {
	case "PartialTranscript":
		if msg.Text == "" {
			return transport.Event{}, false
		}
		return transport.Event{Type: transport.EventPartial, Text: msg.Text}, true
	case "FinalTranscript":
		if msg.Text == "" {
			return transport.Event{}, false
		}
		return transport.Event{Type: transport.EventFinal, Text: msg.Text}, true
	default:
		return transport.Event{}, false
	}
}
