package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// WebSocket publishes JSON messages over a single websocket connection. The
// connection is dialed lazily and redialed once if a write fails.
type WebSocket struct {
	url    string
	header http.Header
	dialer websocket.Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket creates a publisher for the given ws:// or wss:// URL.
func NewWebSocket(url string, header http.Header, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		url:    url,
		header: header,
		dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger: logger.With("component", "bus"),
	}
}

// Publish implements Publisher.
func (w *WebSocket) Publish(ctx context.Context, topic string, payload any) error {
	msg, err := newMessage(topic, payload, time.Now())
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if w.conn == nil {
			conn, _, err := w.dialer.DialContext(ctx, w.url, w.header)
			if err != nil {
				return fmt.Errorf("connecting to bus: %w", err)
			}
			w.conn = conn
		}

		deadline := time.Now().Add(writeTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = w.conn.SetWriteDeadline(deadline)
		if err = w.conn.WriteJSON(msg); err == nil {
			return nil
		}

		w.logger.Warn("bus write failed, reconnecting", "topic", topic, "error", err)
		_ = w.conn.Close()
		w.conn = nil
	}
	return fmt.Errorf("publishing %s: %w", topic, err)
}

// Close sends a close frame and releases the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}
