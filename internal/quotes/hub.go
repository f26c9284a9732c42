package quotes

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
)

// Source is the slice of the stream client the hub drives: it replaces
// the upstream subscription set and receives every normalized update.
type Source interface {
	SetTickers(tickers []string)
	SetOnUpdate(fn func(model.PriceUpdate))
}

// SubscriptionBuffer is the per-subscription channel capacity. A
// consumer that falls this far behind starts losing updates rather than
// stalling the hub.
const SubscriptionBuffer = 64

// Hub fans updates out to subscriptions and listeners and keeps the
// upstream subscription set equal to the union of referenced symbols.
type Hub struct {
	source Source
	logger *slog.Logger

	mu        sync.Mutex
	refs      map[string]int
	subs      map[string]*Subscription
	listeners map[string]func(model.PriceUpdate)
	latest    map[string]model.PriceUpdate
	closed    bool
}

// Subscription delivers updates for its symbols on a buffered channel.
type Subscription struct {
	id      string
	hub     *Hub
	symbols map[string]struct{}
	updates chan model.PriceUpdate
	once    sync.Once
}

// NewHub creates a hub bound to the given source. The hub claims the
// source's update callback.
func NewHub(source Source, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		source:    source,
		logger:    logger,
		refs:      make(map[string]int),
		subs:      make(map[string]*Subscription),
		listeners: make(map[string]func(model.PriceUpdate)),
		latest:    make(map[string]model.PriceUpdate),
	}

	source.SetOnUpdate(h.dispatch)

	return h
}

// Subscribe registers a consumer for the given symbols. Closing the
// subscription releases them. Subscribing on a closed hub returns a
// subscription whose channel is already closed.
func (h *Hub) Subscribe(symbols ...string) *Subscription {
	clean := NormalizeSymbols(symbols)

	sub := &Subscription{
		id:      uuid.NewString(),
		hub:     h,
		symbols: make(map[string]struct{}, len(clean)),
		updates: make(chan model.PriceUpdate, SubscriptionBuffer),
	}
	for _, s := range clean {
		sub.symbols[s] = struct{}{}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.closeChan()
		return sub
	}
	h.subs[sub.id] = sub
	changed := h.retainLocked(clean)
	union := h.unionLocked()
	h.mu.Unlock()

	if changed {
		h.source.SetTickers(union)
	}
	h.logger.Debug("subscription added", "id", sub.id, "symbols", clean)

	return sub
}

// Pin bumps the reference count for the given symbols without a
// delivery channel. The returned function releases them; calling it
// more than once is safe.
func (h *Hub) Pin(symbols ...string) func() {
	clean := NormalizeSymbols(symbols)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	changed := h.retainLocked(clean)
	union := h.unionLocked()
	h.mu.Unlock()

	if changed {
		h.source.SetTickers(union)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.closed {
				h.mu.Unlock()
				return
			}
			changed := h.releaseLocked(clean)
			union := h.unionLocked()
			h.mu.Unlock()

			if changed {
				h.source.SetTickers(union)
			}
		})
	}
}

// AddListener registers a firehose tap invoked for every update. The
// returned function removes it.
func (h *Hub) AddListener(fn func(model.PriceUpdate)) func() {
	id := uuid.NewString()

	h.mu.Lock()
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Latest returns the most recent update for a symbol.
func (h *Hub) Latest(symbol string) (model.PriceUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	u, ok := h.latest[strings.ToUpper(strings.TrimSpace(symbol))]
	return u, ok
}

// Snapshot returns the latest update for every symbol seen, sorted by
// symbol.
func (h *Hub) Snapshot() []model.PriceUpdate {
	h.mu.Lock()
	out := make([]model.PriceUpdate, 0, len(h.latest))
	for _, u := range h.latest {
		out = append(out, u)
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols returns the currently referenced symbol union, sorted.
func (h *Hub) Symbols() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unionLocked()
}

// Close tears down every subscription and empties the upstream set.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.refs = make(map[string]int)
	h.listeners = make(map[string]func(model.PriceUpdate))
	h.mu.Unlock()

	for _, sub := range subs {
		sub.closeChan()
	}
	h.source.SetTickers(nil)

	h.logger.Debug("quote hub closed", "subscriptions", len(subs))
}

// Publish injects an update from outside the stream path, e.g. the REST
// poller. Updates at or before the cached latest timestamp for the
// symbol are dropped so a slow poll cannot roll a quote back.
func (h *Hub) Publish(u model.PriceUpdate) {
	u.Symbol = strings.ToUpper(strings.TrimSpace(u.Symbol))
	if u.Symbol == "" {
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if prev, ok := h.latest[u.Symbol]; ok {
		if t := u.Time(); !t.IsZero() && !t.After(prev.Time()) {
			h.mu.Unlock()
			return
		}
	}
	fns := h.deliverLocked(u)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// dispatch fans out a stream update.
func (h *Hub) dispatch(u model.PriceUpdate) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	fns := h.deliverLocked(u)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// deliverLocked stores the update and sends it to matching
// subscriptions. Channel sends happen under the lock so a concurrent
// Subscription.Close cannot race them; sends never block (full channels
// drop). Listener callbacks are returned for invocation outside the
// lock.
func (h *Hub) deliverLocked(u model.PriceUpdate) []func(model.PriceUpdate) {
	h.latest[u.Symbol] = u

	for _, sub := range h.subs {
		if _, ok := sub.symbols[u.Symbol]; !ok {
			continue
		}
		select {
		case sub.updates <- u:
		default:
			h.logger.Debug("subscription buffer full, dropping update",
				"id", sub.id, "symbol", u.Symbol)
		}
	}

	fns := make([]func(model.PriceUpdate), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	return fns
}

// remove unregisters a subscription and releases its symbols.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub.id)

	symbols := make([]string, 0, len(sub.symbols))
	for s := range sub.symbols {
		symbols = append(symbols, s)
	}
	changed := h.releaseLocked(symbols)
	union := h.unionLocked()
	h.mu.Unlock()

	if changed {
		h.source.SetTickers(union)
	}
	h.logger.Debug("subscription removed", "id", sub.id)
}

// retainLocked bumps reference counts. Reports whether the union grew.
func (h *Hub) retainLocked(symbols []string) bool {
	changed := false
	for _, s := range symbols {
		h.refs[s]++
		if h.refs[s] == 1 {
			changed = true
		}
	}
	return changed
}

// releaseLocked drops reference counts. Reports whether the union shrank.
func (h *Hub) releaseLocked(symbols []string) bool {
	changed := false
	for _, s := range symbols {
		if h.refs[s] == 0 {
			continue
		}
		h.refs[s]--
		if h.refs[s] == 0 {
			delete(h.refs, s)
			changed = true
		}
	}
	return changed
}

// unionLocked returns the sorted referenced symbol set.
func (h *Hub) unionLocked() []string {
	union := make([]string, 0, len(h.refs))
	for s := range h.refs {
		union = append(union, s)
	}
	sort.Strings(union)
	return union
}

// Updates returns the delivery channel. It closes when the subscription
// or the hub closes.
func (s *Subscription) Updates() <-chan model.PriceUpdate {
	return s.updates
}

// Symbols returns the subscribed symbols, sorted.
func (s *Subscription) Symbols() []string {
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Close releases the subscription's symbols and closes its channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.closeChan()
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.updates) })
}

// NormalizeSymbols uppercases, trims and dedupes, preserving first-seen
// order. Subscribe and Pin apply it to their arguments; callers that
// persist symbol lists should apply it too.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
