package slack

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectDelay is the pause between Socket Mode connection attempts.
const reconnectDelay = 5 * time.Second

// MessageEvent is one message event delivered over Socket Mode.
type MessageEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	Channel  string `json:"channel"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`

	Attachments []struct {
		Title   string `json:"title"`
		Pretext string `json:"pretext"`
		Text    string `json:"text"`
	} `json:"attachments"`
}

// envelope is the Socket Mode framing around event payloads.
type envelope struct {
	EnvelopeID string `json:"envelope_id"`
	Type       string `json:"type"`
	Payload    struct {
		Event json.RawMessage `json:"event"`
	} `json:"payload"`
	Reason string `json:"reason"`
}

// ack is the acknowledgement frame Socket Mode expects for every
// events_api envelope.
type ack struct {
	EnvelopeID string `json:"envelope_id"`
}

// SocketClient maintains the Socket Mode connection and delivers
// message events on a channel. Slack rotates WebSocket URLs, so every
// reconnect requests a fresh one via apps.connections.open.
type SocketClient struct {
	api    *Client
	conn   *websocket.Conn
	connMu sync.Mutex
	events chan MessageEvent
	logger *slog.Logger
}

// NewSocketClient creates a Socket Mode client on top of the Web API
// client.
func NewSocketClient(api *Client, logger *slog.Logger) *SocketClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketClient{
		api:    api,
		events: make(chan MessageEvent, 100),
		logger: logger,
	}
}

// Events returns the channel message events are delivered on. It is
// closed when Run returns.
func (s *SocketClient) Events() <-chan MessageEvent {
	return s.events
}

// Run connects and reads events until ctx is cancelled, reconnecting
// on connection loss or when Slack sends a disconnect frame.
func (s *SocketClient) Run(ctx context.Context) {
	defer close(s.events)

	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("socket mode connect failed", "error", err)
		} else {
			s.readLoop(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// connect obtains a fresh WebSocket URL and dials it.
func (s *SocketClient) connect(ctx context.Context) error {
	wsURL, err := s.api.OpenSocketURL(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("connecting to Slack Socket Mode")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	return nil
}

// Close closes the current WebSocket connection, if any.
func (s *SocketClient) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// readLoop reads envelopes until the connection drops or Slack asks
// for a reconnect. Every events_api envelope is acknowledged before
// its event is delivered.
func (s *SocketClient) readLoop(ctx context.Context) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return
	}
	defer conn.Close()

	// Drop the connection when the context ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("socket mode connection closed")
				return
			}
			s.logger.Error("socket mode read error, connection lost", "error", err)
			return
		}

		if env.EnvelopeID != "" {
			if err := conn.WriteJSON(ack{EnvelopeID: env.EnvelopeID}); err != nil {
				s.logger.Warn("socket mode ack failed", "error", err)
			}
		}

		switch env.Type {
		case "events_api":
			var ev MessageEvent
			if err := json.Unmarshal(env.Payload.Event, &ev); err != nil {
				s.logger.Warn("socket mode event decode failed", "error", err)
				continue
			}
			if ev.Type != "message" {
				s.logger.Debug("socket mode ignoring event", "type", ev.Type)
				continue
			}
			select {
			case s.events <- ev:
			default:
				s.logger.Warn("event channel full, dropping message", "channel", ev.Channel)
			}

		case "disconnect":
			s.logger.Info("socket mode disconnect requested", "reason", env.Reason)
			return

		case "hello":
			s.logger.Info("socket mode connected")

		default:
			s.logger.Debug("unhandled socket mode envelope", "type", env.Type)
		}
	}
}
