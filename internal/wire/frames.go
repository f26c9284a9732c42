package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame type strings used on the wire.
const (
	TypeSubscribe   = "subscribe"
	TypeRefresh     = "refresh"
	TypePriceUpdate = "price_update"
	TypePriceBatch  = "price_batch"
)

// ErrMissingType indicates a frame whose envelope has no type field.
var ErrMissingType = errors.New("frame has no type field")

// frameEnvelope extracts the type discriminator without a full parse.
type frameEnvelope struct {
	Type string `json:"type"`
}

// FrameType returns the type field of a raw frame.
func FrameType(data []byte) (string, error) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("failed to parse frame envelope: %w", err)
	}
	if env.Type == "" {
		return "", ErrMissingType
	}
	return env.Type, nil
}

// subscribeFrame is the client→server subscription frame. Tickers always
// carries the complete desired set, never a delta.
type subscribeFrame struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers"`
}

// EncodeSubscribe builds a subscribe frame for the given ticker set.
func EncodeSubscribe(tickers []string) ([]byte, error) {
	return json.Marshal(subscribeFrame{Type: TypeSubscribe, Tickers: tickers})
}

// refreshFrame is the client→server snapshot request frame.
type refreshFrame struct {
	Type string `json:"type"`
}

// EncodeRefresh builds a refresh frame.
func EncodeRefresh() ([]byte, error) {
	return json.Marshal(refreshFrame{Type: TypeRefresh})
}

// priceUpdateWire is the wire format for price_update frames.
type priceUpdateWire struct {
	Type      string  `json:"type"`
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

// priceBatchWire is the wire format for price_batch frames.
type priceBatchWire struct {
	Type string                `json:"type"`
	Data map[string]batchEntry `json:"data"`
}

// batchEntry is one ticker entry inside a price_batch frame.
type batchEntry struct {
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
	TS        int64   `json:"ts"` // Epoch seconds, 0 when absent
}
