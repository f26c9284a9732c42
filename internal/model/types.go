package model

import "time"

// PriceUpdate is the canonical per-symbol update delivered to consumers of
// the data layer, regardless of which wire frame shape produced it.
type PriceUpdate struct {
	Symbol    string  `json:"symbol"`     // Ticker (e.g., "AAPL")
	Price     float64 `json:"price"`      // Last price (dollars)
	Change    float64 `json:"change"`     // Absolute change since previous close
	ChangePct float64 `json:"change_pct"` // Percent change since previous close
	Volume    int64   `json:"volume"`     // Cumulative session volume
	Timestamp string  `json:"timestamp"`  // RFC 3339 UTC
}

// Time parses the update timestamp. Returns the zero time if the timestamp
// is empty or not RFC 3339.
func (u PriceUpdate) Time() time.Time {
	t, err := time.Parse(time.RFC3339, u.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Candle is one OHLCV bar as returned by the history endpoint.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}
