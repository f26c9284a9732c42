// Package wire implements the TickerPulse feed protocol: frame encoding
// for the client side and normalization of inbound frames into
// model.PriceUpdate values.
//
// Client→server frames:
//   - subscribe: full replacement of the subscribed ticker set
//   - refresh: request an immediate snapshot push
//
// Server→client frames:
//   - price_update: one flat update for a single ticker
//   - price_batch: map of ticker → entry, timestamps as epoch seconds
//
// Every other frame type is control traffic (heartbeats, acks) and
// normalizes to zero updates without error. Malformed frames return an
// error; callers count and drop them.
package wire
