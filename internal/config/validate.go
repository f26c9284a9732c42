package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	for i, ms := range c.Stream.BackoffMS {
		if ms < 1 {
			return fmt.Errorf("stream.backoff_ms[%d] must be >= 1, got %d", i, ms)
		}
	}
	if c.Stream.MaxAttempts < 0 {
		return errors.New("stream.max_attempts must be >= 0")
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.RateLimitRPS < 0 {
		return errors.New("api.rate_limit_rps must be >= 0")
	}

	if c.Recorder.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < 1 {
			return errors.New("recorder.buffer_size must be >= 1")
		}
	}

	if c.Poller.Enabled && c.Poller.IntervalMS < 1 {
		return fmt.Errorf("poller.interval_ms must be >= 1, got %d", c.Poller.IntervalMS)
	}

	if c.Prefs.Path == "" {
		return errors.New("prefs.path is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
