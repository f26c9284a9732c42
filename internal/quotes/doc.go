// Package quotes multiplexes the single upstream stream across many
// local consumers.
//
// The Hub keeps a per-symbol reference count fed by three kinds of
// participants:
//   - Subscriptions: channel-backed consumers (SSE clients, CLIs)
//   - Pins: count-only participants with no delivery channel (the
//     daemon's watchlist)
//   - Listeners: firehose taps that see every update regardless of
//     symbol (the recorder)
//
// Whenever the set of referenced symbols changes, the sorted union is
// pushed upstream as a full replacement. The hub also caches the last
// update per symbol for snapshot reads.
package quotes
