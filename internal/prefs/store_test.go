package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPrefCRUD(t *testing.T) {
	s := openTestStore(t)

	// Missing key
	_, err := s.Get("theme")
	assert.ErrorIs(t, err, ErrNotFound)

	// Put and get
	require.NoError(t, s.Put("theme", "dark"))
	v, err := s.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	// Upsert
	require.NoError(t, s.Put("theme", "light"))
	v, err = s.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	// Delete
	require.NoError(t, s.Delete("theme"))
	_, err = s.Get("theme")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is fine
	require.NoError(t, s.Delete("theme"))
}

func TestKeysSorted(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("zoom", "1.5"))
	require.NoError(t, s.Put("theme", "dark"))
	require.NoError(t, s.Put("columns", "price,change"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"columns", "theme", "zoom"}, keys)
}

func TestWatchlistRoundTrip(t *testing.T) {
	s := openTestStore(t)

	// Empty before anything is saved
	symbols, err := s.Watchlist()
	require.NoError(t, err)
	assert.Empty(t, symbols)

	require.NoError(t, s.SaveWatchlist([]string{"AAPL", "MSFT", "NVDA"}))
	symbols, err = s.Watchlist()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, symbols)

	// Replacing with nil clears the list
	require.NoError(t, s.SaveWatchlist(nil))
	symbols, err = s.Watchlist()
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestWatchlistStoredAsJSON(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveWatchlist([]string{"AAPL"}))
	raw, err := s.Get(WatchlistKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["AAPL"]`, raw)
}
