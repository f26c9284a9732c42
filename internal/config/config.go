package config

import (
	"strings"
	"time"
)

// Config is the root configuration for a pulse daemon instance.
type Config struct {
	Stream   StreamConfig   `yaml:"stream"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Poller   PollerConfig   `yaml:"poller"`
	Prefs    PrefsConfig    `yaml:"prefs"`
	Server   ServerConfig   `yaml:"server"`
}

// StreamConfig holds WebSocket stream settings.
type StreamConfig struct {
	// WSURL is the stream endpoint. When empty it is derived from
	// api.base_url; see ResolveWSURL.
	WSURL string `yaml:"ws_url"`

	// Tickers seeds the subscription at startup. The saved watchlist,
	// when present, takes precedence.
	Tickers []string `yaml:"tickers"`

	// BackoffMS is the reconnect delay ladder in milliseconds.
	BackoffMS []int `yaml:"backoff_ms"`

	// MaxAttempts bounds consecutive reconnect attempts. Zero retries
	// forever.
	MaxAttempts int `yaml:"max_attempts"`

	BufferSize       int           `yaml:"buffer_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// APIConfig holds upstream REST API settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds the PostgreSQL connection for recorded updates.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds batch recorder settings. The recorder is
// disabled unless enabled is set, in which case database.postgres is
// required.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// PollerConfig holds REST quote poller settings. The poller is a
// backup path that refreshes every referenced symbol over the REST API,
// filling gaps the stream missed.
type PollerConfig struct {
	Enabled    bool `yaml:"enabled"`
	IntervalMS int  `yaml:"interval_ms"`
}

// Interval returns the poll interval as a duration.
func (p PollerConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// PrefsConfig holds the SQLite preferences store settings.
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Backoff returns the reconnect delay ladder as durations. An empty
// ladder yields nil, leaving the stream client on its built-in table.
func (s StreamConfig) Backoff() []time.Duration {
	if len(s.BackoffMS) == 0 {
		return nil
	}
	out := make([]time.Duration, len(s.BackoffMS))
	for i, ms := range s.BackoffMS {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// ResolveWSURL returns the stream endpoint. An explicit stream.ws_url
// wins; otherwise the endpoint is derived from api.base_url by
// swapping the scheme to ws/wss and appending /ws.
func (c *Config) ResolveWSURL() string {
	if c.Stream.WSURL != "" {
		return c.Stream.WSURL
	}
	if base := c.API.BaseURL; base != "" {
		ws := base
		switch {
		case strings.HasPrefix(base, "https://"):
			ws = "wss://" + strings.TrimPrefix(base, "https://")
		case strings.HasPrefix(base, "http://"):
			ws = "ws://" + strings.TrimPrefix(base, "http://")
		}
		return strings.TrimSuffix(ws, "/") + "/ws"
	}
	return DefaultWSURL
}
