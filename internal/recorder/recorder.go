package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
)

// Schema is the DDL for the price_updates table. EnsureSchema applies
// it on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS price_updates (
    symbol      TEXT             NOT NULL,
    price       DOUBLE PRECISION NOT NULL,
    change      DOUBLE PRECISION NOT NULL DEFAULT 0,
    change_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
    volume      BIGINT           NOT NULL DEFAULT 0,
    ts          TIMESTAMPTZ      NOT NULL,
    received_at BIGINT           NOT NULL,
    PRIMARY KEY (symbol, ts)
);`

// EnsureSchema creates the price_updates table if it does not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create price_updates table: %w", err)
	}
	return nil
}

// Recorder consumes price updates and writes them to the price_updates
// table in batches. Attach Record as a hub listener.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	// Intake from the hub listener
	input chan model.PriceUpdate

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []priceRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics Metrics
}

// New creates a Recorder writing to db.
func New(cfg Config, db *pgxpool.Pool) *Recorder {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		logger: cfg.Logger,
		db:     db,
		input:  make(chan model.PriceUpdate, cfg.BufferSize),
		batch:  make([]priceRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming updates and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder. Updates still buffered on
// the intake channel are flushed before returning.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}

	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
		return ctx.Err()
	}

	// Drain whatever the consumer did not get to, then flush.
	for {
		select {
		case u := <-r.input:
			r.append(ctx, u)
		default:
			r.flush(ctx)
			r.logger.Info("recorder stopped")
			return nil
		}
	}
}

// Record enqueues a price update for persistence. It never blocks;
// updates are dropped when the intake buffer is full.
func (r *Recorder) Record(u model.PriceUpdate) {
	select {
	case r.input <- u:
	default:
		r.batchMu.Lock()
		r.metrics.Drops++
		r.batchMu.Unlock()
		r.logger.Debug("recorder buffer full, dropping update", "symbol", u.Symbol)
	}
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// consumeLoop reads from the intake channel and accumulates batches.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case u := <-r.input:
			r.append(r.ctx, u)
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// append transforms an update and adds it to the batch.
func (r *Recorder) append(ctx context.Context, u model.PriceUpdate) {
	row := transform(u)

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(ctx)
	}
}

// transform converts a PriceUpdate to a priceRow. Updates without a
// parseable timestamp are stamped with the current wall clock.
func transform(u model.PriceUpdate) priceRow {
	ts := u.Time()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return priceRow{
		Symbol:     u.Symbol,
		Price:      u.Price,
		Change:     u.Change,
		ChangePct:  u.ChangePct,
		Volume:     u.Volume,
		Ts:         ts,
		ReceivedAt: time.Now().UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]priceRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed price updates",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []priceRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO price_updates (symbol, price, change, change_pct, volume, ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol, ts) DO NOTHING
		`, row.Symbol, row.Price, row.Change, row.ChangePct, row.Volume, row.Ts, row.ReceivedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
