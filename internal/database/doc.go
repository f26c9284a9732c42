// Package database provides connection pool management for PostgreSQL.
//
// The pulse daemon keeps a single pool, used by the recorder to persist
// price updates. Connection strings are assembled from config with
// URL-escaped credentials.
package database
