package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/wire"
)

// Client maintains one resilient connection to the upstream feed. It
// owns the transport, the reconnect policy and the desired subscription
// set. Every subscribe frame carries the complete desired set; the
// server treats it as a full replacement.
type Client interface {
	// Start begins connecting. Returns ErrAlreadyStarted if already
	// running and ErrMissingURL if no endpoint is configured.
	Start(ctx context.Context) error

	// Stop tears the connection down: any pending reconnect timer is
	// cancelled, the transport is detached and closed, and no further
	// reconnects are scheduled. Start may be called again afterwards.
	Stop(ctx context.Context) error

	// SetTickers replaces the desired subscription set. While open, the
	// full set is flushed to the server immediately; while disconnected
	// the set is stored and flushed once on the next open. An empty set
	// never produces a subscribe frame.
	SetTickers(tickers []string)

	// Refresh asks the server for an immediate snapshot push. No-op
	// while not connected.
	Refresh()

	// Status returns the current connection status.
	Status() Status

	// SetOnUpdate replaces the update callback. Replacing the callback
	// does not disturb the connection.
	SetOnUpdate(fn func(model.PriceUpdate))

	// SetOnStatus replaces the status callback, invoked on every status
	// transition.
	SetOnStatus(fn func(Status))

	// Stats returns current runtime counters.
	Stats() Stats
}

// client implements Client.
type client struct {
	cfg    Config
	logger *slog.Logger
	norm   *wire.Normalizer

	// Wake-up tokens for the event loop, capacity 1. A pending token
	// already covers any number of coalesced requests because the loop
	// reads the current desired set at flush time.
	flushC   chan struct{}
	refreshC chan struct{}

	// Guards desired set, callbacks, status and counters.
	mu               sync.RWMutex
	desired          []string
	onUpdate         func(model.PriceUpdate)
	onStatus         func(Status)
	status           Status
	framesReceived   int64
	updatesDelivered int64
	parseErrors      int64
	reconnects       int64
	connectedAt      time.Time

	// Lifecycle
	lifeMu  sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// dialResult is posted by the dial goroutine back to the event loop.
type dialResult struct {
	tr  *transport
	err error
}

// NewClient creates a stream client. Zero-valued config fields are
// filled from defaults.
func NewClient(cfg Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		norm:     wire.NewNormalizer(),
		flushC:   make(chan struct{}, 1),
		refreshC: make(chan struct{}, 1),
		status:   StatusClosed,
	}
}

// Start begins the connect loop.
func (c *client) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	if c.cfg.URL == "" {
		return ErrMissingURL
	}

	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.logger.Info("stream client started", "url", c.cfg.URL)

	return nil
}

// Stop shuts the client down and waits for the event loop to exit.
func (c *client) Stop(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if !c.started {
		return nil
	}

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("stream client stop timed out")
		return ctx.Err()
	}

	c.started = false
	c.logger.Info("stream client stopped")

	return nil
}

// SetTickers replaces the desired subscription set. The flush token is
// only posted while open; a set changed while disconnected is picked up
// by the flush that runs on the next successful open.
func (c *client) SetTickers(tickers []string) {
	cleaned := dedupe(tickers)

	c.mu.Lock()
	c.desired = cleaned
	open := c.status == StatusOpen
	c.mu.Unlock()

	if !open {
		return
	}
	select {
	case c.flushC <- struct{}{}:
	default:
	}
}

// Refresh requests an immediate snapshot push.
func (c *client) Refresh() {
	c.mu.RLock()
	open := c.status == StatusOpen
	c.mu.RUnlock()

	if !open {
		return
	}
	select {
	case c.refreshC <- struct{}{}:
	default:
	}
}

// Status returns the current connection status.
func (c *client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetOnUpdate replaces the update callback.
func (c *client) SetOnUpdate(fn func(model.PriceUpdate)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// SetOnStatus replaces the status callback.
func (c *client) SetOnStatus(fn func(Status)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// Stats returns current runtime counters.
func (c *client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Status:           c.status,
		FramesReceived:   c.framesReceived,
		UpdatesDelivered: c.updatesDelivered,
		ParseErrors:      c.parseErrors,
		Reconnects:       c.reconnects,
		ConnectedAt:      c.connectedAt,
	}
}

// run is the event loop. It is the only goroutine that touches the
// transport, so connection state needs no locking: at most one transport
// is live, at most one dial is in flight, and at most one reconnect
// timer is pending at any time.
func (c *client) run() {
	defer c.wg.Done()

	var (
		tr         *transport
		frames     <-chan []byte
		errs       <-chan error
		dials      = make(chan dialResult, 1)
		dialing    bool
		attempts   int
		retryTimer *time.Timer
		retryC     <-chan time.Time
	)

	// detach stops the event loop from observing the transport before
	// closing it, so the close produces no further signals and exactly
	// one reconnect is scheduled per failure.
	detach := func() {
		if tr == nil {
			return
		}
		frames, errs = nil, nil
		tr.close()
		tr = nil
	}

	scheduleRetry := func() {
		if c.cfg.MaxAttempts > 0 && attempts >= c.cfg.MaxAttempts {
			c.logger.Warn("reconnect attempts exhausted", "attempts", attempts)
			return
		}
		delay := c.cfg.Backoff.Delay(attempts)
		attempts++
		c.mu.Lock()
		c.reconnects++
		c.mu.Unlock()
		c.logger.Info("scheduling reconnect", "delay", delay, "attempt", attempts)
		retryTimer = time.NewTimer(delay)
		retryC = retryTimer.C
	}

	connect := func() {
		if dialing || tr != nil {
			return
		}
		dialing = true
		c.setStatus(StatusConnecting)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			t, err := dialTransport(c.ctx, c.cfg, c.logger)
			select {
			case dials <- dialResult{tr: t, err: err}:
			case <-c.ctx.Done():
				if t != nil {
					t.close()
				}
			}
		}()
	}

	connect()

	for {
		select {
		case <-c.ctx.Done():
			if retryTimer != nil {
				retryTimer.Stop()
			}
			detach()
			c.setStatus(StatusClosed)
			return

		case res := <-dials:
			dialing = false
			if res.err != nil {
				c.logger.Warn("dial failed", "url", c.cfg.URL, "error", res.err)
				c.setStatus(StatusError)
				scheduleRetry()
				continue
			}
			tr = res.tr
			frames = tr.frames
			errs = tr.errs
			attempts = 0
			c.mu.Lock()
			c.connectedAt = time.Now()
			c.mu.Unlock()
			c.setStatus(StatusOpen)
			c.logger.Info("stream connected", "url", c.cfg.URL)
			c.flushSubscription(tr)

		case data := <-frames:
			c.handleFrame(data)

		case err := <-errs:
			if isNormalClose(err) {
				c.logger.Info("stream closed by server")
				c.setStatus(StatusClosed)
			} else {
				c.logger.Warn("stream transport error", "error", err)
				c.setStatus(StatusError)
			}
			detach()
			scheduleRetry()

		case <-retryC:
			retryC = nil
			retryTimer = nil
			connect()

		case <-c.flushC:
			if tr != nil {
				c.flushSubscription(tr)
			}

		case <-c.refreshC:
			if tr != nil {
				c.sendRefresh(tr)
			}
		}
	}
}

// flushSubscription sends the complete current desired set. An empty set
// sends nothing.
func (c *client) flushSubscription(tr *transport) {
	c.mu.RLock()
	tickers := make([]string, len(c.desired))
	copy(tickers, c.desired)
	c.mu.RUnlock()

	if len(tickers) == 0 {
		return
	}

	data, err := wire.EncodeSubscribe(tickers)
	if err != nil {
		c.logger.Error("failed to encode subscribe", "error", err)
		return
	}
	if err := tr.send(data); err != nil {
		c.logger.Warn("failed to send subscribe", "error", err)
		return
	}

	c.logger.Debug("subscription flushed", "tickers", tickers)
}

// sendRefresh sends a refresh frame.
func (c *client) sendRefresh(tr *transport) {
	data, err := wire.EncodeRefresh()
	if err != nil {
		c.logger.Error("failed to encode refresh", "error", err)
		return
	}
	if err := tr.send(data); err != nil {
		c.logger.Warn("failed to send refresh", "error", err)
	}
}

// handleFrame normalizes one inbound frame and invokes the update
// callback per resulting update. Malformed frames are counted and
// dropped; the connection stays up.
func (c *client) handleFrame(data []byte) {
	updates, err := c.norm.Normalize(data)

	c.mu.Lock()
	c.framesReceived++
	if err != nil {
		c.parseErrors++
		c.mu.Unlock()
		c.logger.Debug("dropping malformed frame", "error", err)
		return
	}
	c.updatesDelivered += int64(len(updates))
	fn := c.onUpdate
	c.mu.Unlock()

	if fn == nil {
		return
	}
	for _, u := range updates {
		fn(u)
	}
}

// setStatus records a status transition and notifies the status
// callback. Repeated identical states are not transitions.
func (c *client) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	fn := c.onStatus
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// isNormalClose reports whether err is a graceful websocket close.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	)
}

// dedupe drops empty and repeated tickers, preserving first-seen order.
func dedupe(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
