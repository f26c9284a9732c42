// Package stream maintains the resilient websocket connection to the
// upstream price feed.
//
// Components:
//   - Client: single event loop owning the transport, the reconnect
//     policy and the desired subscription set
//   - transport: one live websocket connection, read-pumped until its
//     first terminal error
//   - BackoffTable: reconnect delay schedule indexed by consecutive
//     failure count
//
// All transport interaction is serialized through the Client's event
// loop goroutine. Callers interact through SetTickers, Refresh, the
// update/status callbacks and Stats; none of those block on network I/O.
package stream
