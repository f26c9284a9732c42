// Package model defines shared data types used across the TickerPulse data layer.
//
// Conventions:
//   - Prices: float64 dollars, exactly as delivered by the upstream feed
//   - Timestamps: RFC 3339 UTC strings on updates, time.Time on candles
//   - Symbols: upper-case ticker strings (e.g., "AAPL")
package model
