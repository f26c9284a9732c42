package stream

import (
	"errors"
	"time"
)

// Status describes the state of the upstream connection as observed by
// consumers.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// Sentinel errors returned by Client lifecycle methods.
var (
	ErrAlreadyStarted = errors.New("stream client already started")
	ErrMissingURL     = errors.New("stream endpoint URL is required")
)

// Config holds configuration for the stream Client.
type Config struct {
	// URL is the websocket endpoint of the upstream feed.
	URL string

	// Backoff maps the consecutive failure count to the reconnect delay.
	Backoff BackoffTable

	// MaxAttempts caps consecutive reconnect attempts since the last
	// successful open. 0 means retry forever.
	MaxAttempts int

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound frame write.
	WriteTimeout time.Duration

	// BufferSize is the inbound frame buffer between the transport
	// reader and the event loop.
	BufferSize int
}

// Default configuration values.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultBufferSize       = 256
)

// DefaultConfig returns default client configuration. URL must still be
// set by the caller.
func DefaultConfig() Config {
	return Config{
		Backoff:          DefaultBackoff(),
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		BufferSize:       DefaultBufferSize,
	}
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.Backoff == nil {
		c.Backoff = DefaultBackoff()
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	return c
}

// Stats contains runtime counters for the Client.
type Stats struct {
	Status           Status
	FramesReceived   int64
	UpdatesDelivered int64
	ParseErrors      int64
	Reconnects       int64
	ConnectedAt      time.Time // Zero until the first successful open
}
