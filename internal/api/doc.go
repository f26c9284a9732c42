// Package api provides the TickerPulse market data REST client.
//
// Endpoints:
//   - GET /api/quote/{symbol}: current quote for one symbol
//   - GET /api/quotes?symbols=A,B: current quotes for a symbol list
//   - GET /api/history/{symbol}?interval=1d&limit=N: OHLCV candles
//
// Requests carry a bearer API key when configured, retry on 5xx/429
// responses with jittered exponential backoff, and respect an optional
// client-side rate limit.
package api
