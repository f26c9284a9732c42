package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// WatchlistKey is the preference key under which the saved watchlist
// is stored as a JSON array of symbols.
const WatchlistKey = "watchlist"

// ErrNotFound is returned when a preference key does not exist.
var ErrNotFound = errors.New("preference not found")

// Store provides SQLite persistence for dashboard preferences.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the preferences database at path and ensures
// the schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping prefs db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS prefs (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get pref %q: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any existing value.
func (s *Store) Put(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO prefs (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put pref %q: %w", key, err)
	}
	return nil
}

// Delete removes the preference stored under key. Deleting a missing
// key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM prefs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete pref %q: %w", key, err)
	}
	return nil
}

// Keys returns all stored preference keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM prefs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query pref keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan pref key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// Watchlist returns the saved watchlist symbols. A missing watchlist
// yields an empty slice, not an error.
func (s *Store) Watchlist() ([]string, error) {
	value, err := s.Get(WatchlistKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var symbols []string
	if err := json.Unmarshal([]byte(value), &symbols); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}
	return symbols, nil
}

// SaveWatchlist stores the watchlist symbols as a JSON array.
func (s *Store) SaveWatchlist(symbols []string) error {
	if symbols == nil {
		symbols = []string{}
	}
	data, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	return s.Put(WatchlistKey, string(data))
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
