// Package realtime implements the websocket client for the realtime streaming
// protocol: connect, configure the session, send a user message, and consume
// the typed inbound event stream.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Config configures a realtime connection.
type Config struct {
	TargetURL        string // https:// resource endpoint or raw ws(s):// URL
	Model            string
	APIKey           string
	APIVersion       string
	HandshakeTimeout time.Duration
}

// SessionURL resolves the websocket URL for a session. A raw ws:// or wss://
// target is used verbatim; an http(s) resource endpoint is rewritten to the
// realtime path with api-version and deployment query parameters.
func SessionURL(cfg Config) (string, error) {
	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return "", fmt.Errorf("target URL is empty")
	}
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported target scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/openai/realtime"
	q := u.Query()
	if cfg.APIVersion != "" {
		q.Set("api-version", cfg.APIVersion)
	}
	if cfg.Model != "" {
		q.Set("deployment", cfg.Model)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Conn is one live realtime session connection. Reads and writes may happen
// from different goroutines; writes are serialized internally.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	statsMu   sync.Mutex
	eventsIn  int64
	bytesIn   int64
	connected time.Time
}

// Stats is a snapshot of connection counters.
type Stats struct {
	EventsReceived int64
	BytesReceived  int64
	ConnectedFor   time.Duration
}

// Dial opens a realtime session connection.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	sessionURL, err := SessionURL(cfg)
	if err != nil {
		return nil, err
	}

	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout == 0 {
		handshakeTimeout = 30 * time.Second
	}
	dialer := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("api-key", cfg.APIKey)
	}
	// Carry W3C trace context on the handshake when a span is active.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))

	ws, resp, err := dialer.DialContext(ctx, sessionURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}
	return &Conn{ws: ws, connected: time.Now()}, nil
}

// UpdateSession sends a session.update configuring the response modalities.
func (c *Conn) UpdateSession(modalities []string) error {
	if len(modalities) == 0 {
		modalities = []string{"text"}
	}
	return c.sendJSON(sessionUpdateEvent{
		Type:    "session.update",
		Session: sessionConfig{Modalities: modalities},
	})
}

// SendUserMessage sends the prompt as a user conversation item.
func (c *Conn) SendUserMessage(text string) error {
	return c.sendJSON(itemCreateEvent{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type:    "message",
			Role:    "user",
			Content: []contentPart{{Type: "input_text", Text: text}},
		},
	})
}

// CreateResponse asks the peer to start generating a response.
func (c *Conn) CreateResponse() error {
	return c.sendJSON(responseCreateEvent{Type: "response.create"})
}

func (c *Conn) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode client event: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write client event: %w", err)
	}
	return nil
}

// ReadEvent blocks until the next inbound event arrives and classifies it.
// It returns an error once the connection closes.
func (c *Conn) ReadEvent() (ServerEvent, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return ServerEvent{}, fmt.Errorf("read server event: %w", err)
	}
	c.statsMu.Lock()
	c.eventsIn++
	c.bytesIn += int64(len(data))
	c.statsMu.Unlock()
	return ParseServerEvent(data), nil
}

// Stats returns a snapshot of connection counters.
func (c *Conn) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return Stats{
		EventsReceived: c.eventsIn,
		BytesReceived:  c.bytesIn,
		ConnectedFor:   time.Since(c.connected),
	}
}

// Close sends a normal-closure frame, then closes the socket. Closing unblocks
// a concurrent ReadEvent.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)
	c.writeMu.Unlock()

	closeErr := c.ws.Close()
	if err != nil && err != websocket.ErrCloseSent {
		return err
	}
	return closeErr
}
