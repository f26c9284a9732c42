package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// transport wraps one live websocket connection. The Client event loop
// is its only consumer: a transport is dialed, read-pumped until its
// first terminal error, then closed and discarded. It is never reused.
type transport struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration

	// frames carries inbound text frames; errs carries the single
	// terminal read error (cap 1).
	frames chan []byte
	errs   chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
}

// dialTransport opens the websocket connection and starts its read pump.
func dialTransport(ctx context.Context, cfg Config, logger *slog.Logger) (*transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("Accept", "application/json")

	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, err
	}

	t := &transport{
		conn:         conn,
		logger:       logger,
		writeTimeout: cfg.WriteTimeout,
		frames:       make(chan []byte, cfg.BufferSize),
		errs:         make(chan error, 1),
		done:         make(chan struct{}),
	}

	go t.readLoop()

	logger.Debug("websocket connected", "url", cfg.URL)

	return t, nil
}

// readLoop pumps inbound frames until the first read error. The error is
// suppressed when close was requested locally, so a detached transport
// never signals the event loop.
func (t *transport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				select {
				case t.errs <- err:
				default:
				}
			}
			return
		}

		select {
		case t.frames <- data:
		case <-t.done:
			return
		default:
			t.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// send writes one text frame.
func (t *transport) send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// close sends a best-effort close frame and tears down the socket. Safe
// to call more than once.
func (t *transport) close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.conn.Close()
	})
}
