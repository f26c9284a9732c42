// Package recorder persists price updates to PostgreSQL in batches.
//
// The recorder subscribes to the quote hub as a listener and buffers
// updates on an internal channel. A consumer goroutine accumulates
// rows and flushes them with pgx batch inserts when the batch fills or
// the flush interval elapses. Duplicate rows (same symbol and source
// timestamp) are dropped with ON CONFLICT DO NOTHING.
package recorder
