// Package poller implements the REST quote poller.
//
// The poller:
//   - Periodically refreshes every referenced symbol over the REST API
//   - Provides a backup data source while the stream is reconnecting
//   - Splits the symbol set into bounded concurrent batch requests
//   - Publishes through the hub, which drops quotes older than the cache
package poller
