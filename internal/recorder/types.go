package recorder

import (
	"log/slog"
	"time"
)

// Config contains configuration for the batch recorder.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the capacity of the intake channel between the hub
	// listener and the consumer goroutine.
	BufferSize int

	// Logger for recorder events. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
		BufferSize:    4096,
	}
}

// priceRow represents a row to be inserted into the price_updates table.
type priceRow struct {
	Symbol     string
	Price      float64
	Change     float64
	ChangePct  float64
	Volume     int64
	Ts         time.Time // source timestamp from the update
	ReceivedAt int64     // microseconds
}

// Metrics holds counters for the recorder.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Drops     int64
	Errors    int64
	Flushes   int64
}
