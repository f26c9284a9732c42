package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/api"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
)

// SymbolSource provides the symbols to refresh.
type SymbolSource interface {
	Symbols() []string
}

// Sink receives refreshed quotes.
type Sink interface {
	Publish(u model.PriceUpdate)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(model.PriceUpdate)

func (f SinkFunc) Publish(u model.PriceUpdate) {
	f(u)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 60s)
	ChunkSize   int           // Max symbols per request (default: 50)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		ChunkSize:   50,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically refreshes quotes via the REST API and feeds them
// back into the quote cache.
type Poller struct {
	cfg     Config
	client  *api.Client
	symbols SymbolSource
	sink    Sink
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. Zero config fields fall back to defaults.
func New(cfg Config, client *api.Client, symbols SymbolSource, sink Sink, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		symbols: symbols,
		sink:    sink,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("quote poller started",
		"interval", p.cfg.Interval,
		"chunk_size", p.cfg.ChunkSize,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("quote poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollCycle()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollCycle()
		}
	}
}

// pollCycle refreshes every referenced symbol, chunked into bounded
// concurrent batch requests.
func (p *Poller) pollCycle() {
	start := time.Now()

	symbols := p.symbols.Symbols()
	if len(symbols) == 0 {
		p.logger.Debug("no symbols to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, group := range chunk(symbols, p.cfg.ChunkSize) {
		wg.Add(1)
		go func(group []string) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			n, err := p.pollChunk(group)
			if err != nil {
				p.logger.Warn("failed to poll quotes",
					"symbols", len(group),
					"err", err,
				)
				errors.Add(1)
				return
			}

			fetched.Add(int64(n))
		}(group)
	}

	wg.Wait()

	p.logger.Info("poll cycle complete",
		"symbols", len(symbols),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollChunk fetches one batch of quotes and hands them to the sink.
func (p *Poller) pollChunk(symbols []string) (int, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	quotes, err := p.client.GetQuotes(ctx, symbols)
	if err != nil {
		return 0, err
	}

	for _, q := range quotes {
		p.sink.Publish(q)
	}

	return len(quotes), nil
}

// chunk splits symbols into groups of at most size.
func chunk(symbols []string, size int) [][]string {
	if len(symbols) == 0 {
		return nil
	}
	var out [][]string
	for len(symbols) > size {
		out = append(out, symbols[:size])
		symbols = symbols[size:]
	}
	return append(out, symbols)
}
