package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
)

// quoteResponse wraps a single quote.
type quoteResponse struct {
	Quote model.PriceUpdate `json:"quote"`
}

// quotesResponse wraps a quote list.
type quotesResponse struct {
	Quotes []model.PriceUpdate `json:"quotes"`
}

// candleWire is one OHLCV bar with an epoch-second timestamp.
type candleWire struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V int64   `json:"v"`
}

// historyResponse is the candle list for one symbol.
type historyResponse struct {
	Symbol   string       `json:"symbol"`
	Interval string       `json:"interval"`
	Candles  []candleWire `json:"candles"`
}

// GetQuote fetches the current quote for one symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (model.PriceUpdate, error) {
	var resp quoteResponse
	if err := c.get(ctx, "/api/quote/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return model.PriceUpdate{}, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	return resp.Quote, nil
}

// GetQuotes fetches current quotes for a set of symbols.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) ([]model.PriceUpdate, error) {
	query := url.Values{}
	if len(symbols) > 0 {
		query.Set("symbols", strings.Join(symbols, ","))
	}

	var resp quotesResponse
	if err := c.get(ctx, "/api/quotes", query, &resp); err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}
	return resp.Quotes, nil
}

// GetHistory fetches OHLCV history for a symbol. interval is a server
// interval name such as "1m", "1h" or "1d"; limit 0 leaves the page
// size to the server.
func (c *Client) GetHistory(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	query := url.Values{}
	if interval != "" {
		query.Set("interval", interval)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp historyResponse
	if err := c.get(ctx, "/api/history/"+url.PathEscape(symbol), query, &resp); err != nil {
		return nil, fmt.Errorf("get history %s: %w", symbol, err)
	}

	candles := make([]model.Candle, 0, len(resp.Candles))
	for _, w := range resp.Candles {
		candles = append(candles, model.Candle{
			Time:   time.Unix(w.T, 0).UTC(),
			Open:   w.O,
			High:   w.H,
			Low:    w.L,
			Close:  w.C,
			Volume: w.V,
		})
	}
	return candles, nil
}
