// Package httpapi serves the dashboard-facing HTTP API.
//
// Endpoints:
//   - GET  /healthz              liveness probe
//   - GET  /api/status           feed status and counters
//   - GET  /api/quotes           latest quote for every known symbol
//   - GET  /api/quotes/{symbol}  latest quote for one symbol
//   - GET  /api/history/{symbol} OHLCV candles proxied from upstream
//   - GET  /api/stream           live updates as Server-Sent Events
//   - GET  /api/watchlist        saved watchlist
//   - PUT  /api/watchlist        replace the watchlist
//   - GET/PUT/DELETE /api/prefs/{key}  preference key/value store
//
// The server owns the hub pin backing the saved watchlist: replacing
// the watchlist pins the new symbols before releasing the old ones so
// shared symbols never drop off the upstream subscription.
package httpapi
