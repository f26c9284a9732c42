package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
)

// Normalizer converts raw inbound frames into canonical price updates.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a Normalizer that uses the wall clock for batch
// entries carrying no timestamp.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize parses one raw frame. A price_update frame yields exactly one
// update; a price_batch frame yields one update per entry. Control frames
// of any other type yield zero updates and no error.
func (n *Normalizer) Normalize(data []byte) ([]model.PriceUpdate, error) {
	frameType, err := FrameType(data)
	if err != nil {
		return nil, err
	}

	switch frameType {
	case TypePriceUpdate:
		return n.normalizeUpdate(data)
	case TypePriceBatch:
		return n.normalizeBatch(data)
	default:
		return nil, nil
	}
}

// normalizeUpdate maps a single price_update frame field-for-field.
func (n *Normalizer) normalizeUpdate(data []byte) ([]model.PriceUpdate, error) {
	var w priceUpdateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse price_update: %w", err)
	}

	return []model.PriceUpdate{{
		Symbol:    w.Ticker,
		Price:     w.Price,
		Change:    w.Change,
		ChangePct: w.ChangePct,
		Volume:    w.Volume,
		Timestamp: w.Timestamp,
	}}, nil
}

// normalizeBatch expands a price_batch frame into one update per entry.
// Epoch-second timestamps become RFC 3339 UTC; entries without a
// timestamp get the current wall clock.
func (n *Normalizer) normalizeBatch(data []byte) ([]model.PriceUpdate, error) {
	var w priceBatchWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse price_batch: %w", err)
	}

	updates := make([]model.PriceUpdate, 0, len(w.Data))
	for ticker, entry := range w.Data {
		var stamp string
		if entry.TS > 0 {
			stamp = time.Unix(entry.TS, 0).UTC().Format(time.RFC3339)
		} else {
			stamp = n.now().UTC().Format(time.RFC3339)
		}

		updates = append(updates, model.PriceUpdate{
			Symbol:    ticker,
			Price:     entry.Price,
			Change:    entry.Change,
			ChangePct: entry.ChangePct,
			Volume:    entry.Volume,
			Timestamp: stamp,
		})
	}

	return updates, nil
}
