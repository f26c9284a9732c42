// Package prefs provides SQLite-backed persistence for dashboard
// preferences such as the saved watchlist and UI settings.
//
// Preferences are stored as string key/value pairs in a single table.
// The watchlist is kept under a well-known key as a JSON array so the
// daemon can restore subscriptions across restarts.
package prefs
