package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/api"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/prefs"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/quotes"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/stream"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    [][]string
	onUpdate func(model.PriceUpdate)
}

func (f *fakeSource) SetTickers(tickers []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), tickers...))
}

func (f *fakeSource) SetOnUpdate(fn func(model.PriceUpdate)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUpdate = fn
}

func (f *fakeSource) push(u model.PriceUpdate) {
	f.mu.Lock()
	fn := f.onUpdate
	f.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

func (f *fakeSource) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type fakeFeed struct {
	stats stream.Stats
}

func (f *fakeFeed) Status() stream.Status { return f.stats.Status }
func (f *fakeFeed) Stats() stream.Stats   { return f.stats }

type testEnv struct {
	ts    *httptest.Server
	src   *fakeSource
	hub   *quotes.Hub
	store *prefs.Store
	feed  *fakeFeed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	src := &fakeSource{}
	hub := quotes.NewHub(src, logger)

	store, err := prefs.Open(":memory:")
	if err != nil {
		t.Fatalf("open prefs store: %v", err)
	}

	feed := &fakeFeed{stats: stream.Stats{Status: stream.StatusOpen}}

	srv := New(Config{Addr: ":0", Logger: logger}, hub, feed, store, nil, nil)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		store.Close()
		hub.Close()
	})

	return &testEnv{ts: ts, src: src, hub: hub, store: store, feed: feed}
}

func mkUpdate(symbol string, price float64) model.PriceUpdate {
	return model.PriceUpdate{
		Symbol:    symbol,
		Price:     price,
		Timestamp: "2023-11-14T22:13:20Z",
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]string
	code := getJSON(t, env.ts.URL+"/healthz", &body)

	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status ok", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.feed.stats = stream.Stats{
		Status:           stream.StatusOpen,
		FramesReceived:   42,
		UpdatesDelivered: 40,
		ParseErrors:      2,
		Reconnects:       1,
		ConnectedAt:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	sub := env.hub.Subscribe("AAPL")
	defer sub.Close()

	var resp statusResponse
	code := getJSON(t, env.ts.URL+"/api/status", &resp)

	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Status != "open" {
		t.Errorf("Status = %q, want open", resp.Status)
	}
	if resp.FramesReceived != 42 {
		t.Errorf("FramesReceived = %d, want 42", resp.FramesReceived)
	}
	if resp.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", resp.ParseErrors)
	}
	if resp.ConnectedAt != "2024-03-01T09:30:00Z" {
		t.Errorf("ConnectedAt = %q, want 2024-03-01T09:30:00Z", resp.ConnectedAt)
	}
	if !reflect.DeepEqual(resp.Symbols, []string{"AAPL"}) {
		t.Errorf("Symbols = %v, want [AAPL]", resp.Symbols)
	}
	if resp.Recorder != nil {
		t.Errorf("Recorder = %+v, want nil when recording disabled", resp.Recorder)
	}
}

func TestQuoteEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.src.push(mkUpdate("AAPL", 189.45))

	var single struct {
		Quote model.PriceUpdate `json:"quote"`
	}
	if code := getJSON(t, env.ts.URL+"/api/quotes/AAPL", &single); code != http.StatusOK {
		t.Fatalf("GET quote status = %d, want 200", code)
	}
	if single.Quote.Price != 189.45 {
		t.Errorf("Price = %v, want 189.45", single.Quote.Price)
	}

	// Symbol lookup is case-insensitive
	if code := getJSON(t, env.ts.URL+"/api/quotes/aapl", nil); code != http.StatusOK {
		t.Errorf("GET lowercase quote status = %d, want 200", code)
	}

	if code := getJSON(t, env.ts.URL+"/api/quotes/MSFT", nil); code != http.StatusNotFound {
		t.Errorf("GET unknown quote status = %d, want 404", code)
	}

	var all struct {
		Quotes []model.PriceUpdate `json:"quotes"`
	}
	if code := getJSON(t, env.ts.URL+"/api/quotes", &all); code != http.StatusOK {
		t.Fatalf("GET quotes status = %d, want 200", code)
	}
	if len(all.Quotes) != 1 || all.Quotes[0].Symbol != "AAPL" {
		t.Errorf("Quotes = %v, want one AAPL entry", all.Quotes)
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var list struct {
		Symbols []string `json:"symbols"`
	}
	if code := getJSON(t, env.ts.URL+"/api/watchlist", &list); code != http.StatusOK {
		t.Fatalf("GET watchlist status = %d, want 200", code)
	}
	if len(list.Symbols) != 0 {
		t.Errorf("initial watchlist = %v, want empty", list.Symbols)
	}

	resp := doJSON(t, http.MethodPut, env.ts.URL+"/api/watchlist", `{"symbols":["aapl","AAPL","msft"]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT watchlist status = %d, want 200", resp.StatusCode)
	}
	var saved struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		t.Fatalf("decode PUT response: %v", err)
	}
	if !reflect.DeepEqual(saved.Symbols, []string{"AAPL", "MSFT"}) {
		t.Errorf("saved symbols = %v, want [AAPL MSFT]", saved.Symbols)
	}

	// Upstream subscription follows the pin
	if got := env.src.lastCall(); !reflect.DeepEqual(got, []string{"AAPL", "MSFT"}) {
		t.Errorf("upstream tickers = %v, want [AAPL MSFT]", got)
	}

	// Persisted
	stored, err := env.store.Watchlist()
	if err != nil {
		t.Fatalf("load stored watchlist: %v", err)
	}
	if !reflect.DeepEqual(stored, []string{"AAPL", "MSFT"}) {
		t.Errorf("stored watchlist = %v, want [AAPL MSFT]", stored)
	}

	// Replacement swaps the pin, releasing the old symbols
	resp2 := doJSON(t, http.MethodPut, env.ts.URL+"/api/watchlist", `{"symbols":["NVDA"]}`)
	resp2.Body.Close()
	if got := env.src.lastCall(); !reflect.DeepEqual(got, []string{"NVDA"}) {
		t.Errorf("upstream tickers after replace = %v, want [NVDA]", got)
	}

	// Malformed body
	bad := doJSON(t, http.MethodPut, env.ts.URL+"/api/watchlist", `{`)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("PUT bad body status = %d, want 400", bad.StatusCode)
	}
}

func TestPrefsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	if code := getJSON(t, env.ts.URL+"/api/prefs/theme", nil); code != http.StatusNotFound {
		t.Errorf("GET missing pref status = %d, want 404", code)
	}

	put := doJSON(t, http.MethodPut, env.ts.URL+"/api/prefs/theme", `{"value":"dark"}`)
	put.Body.Close()
	if put.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT pref status = %d, want 204", put.StatusCode)
	}

	var got map[string]string
	if code := getJSON(t, env.ts.URL+"/api/prefs/theme", &got); code != http.StatusOK {
		t.Fatalf("GET pref status = %d, want 200", code)
	}
	if got["value"] != "dark" || got["key"] != "theme" {
		t.Errorf("pref = %v, want key=theme value=dark", got)
	}

	del := doJSON(t, http.MethodDelete, env.ts.URL+"/api/prefs/theme", "")
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE pref status = %d, want 204", del.StatusCode)
	}

	if code := getJSON(t, env.ts.URL+"/api/prefs/theme", nil); code != http.StatusNotFound {
		t.Errorf("GET deleted pref status = %d, want 404", code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/history/AAPL" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("upstream interval = %q, want 1d", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"symbol":"AAPL","interval":"1d","candles":[{"t":1700000000,"o":185.1,"h":190.2,"l":184.8,"c":189.45,"v":52000000}]}`)
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &fakeSource{}
	hub := quotes.NewHub(src, logger)
	defer hub.Close()

	store, err := prefs.Open(":memory:")
	if err != nil {
		t.Fatalf("open prefs store: %v", err)
	}
	defer store.Close()

	rest := api.NewClient(upstream.URL, "")
	srv := New(Config{Logger: logger}, hub, &fakeFeed{}, store, nil, rest)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var resp struct {
		Symbol  string         `json:"symbol"`
		Candles []model.Candle `json:"candles"`
	}
	// The symbol is normalized before the upstream call.
	if code := getJSON(t, ts.URL+"/api/history/aapl?interval=1d", &resp); code != http.StatusOK {
		t.Fatalf("GET history status = %d, want 200", code)
	}
	if resp.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", resp.Symbol)
	}
	if len(resp.Candles) != 1 {
		t.Fatalf("Candles = %v, want one entry", resp.Candles)
	}
	c := resp.Candles[0]
	if c.Close != 189.45 || c.Volume != 52000000 {
		t.Errorf("candle = %+v, want close 189.45 volume 52000000", c)
	}
	if want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC); !c.Time.Equal(want) {
		t.Errorf("candle time = %v, want %v", c.Time, want)
	}

	// Unknown symbols map the upstream 404 through.
	if code := getJSON(t, ts.URL+"/api/history/MSFT", nil); code != http.StatusNotFound {
		t.Errorf("GET unknown history status = %d, want 404", code)
	}

	// Bad limit is rejected before any upstream call.
	if code := getJSON(t, ts.URL+"/api/history/AAPL?limit=abc", nil); code != http.StatusBadRequest {
		t.Errorf("GET bad limit status = %d, want 400", code)
	}
}

func TestHistoryWithoutRESTClient(t *testing.T) {
	env := newTestEnv(t)

	if code := getJSON(t, env.ts.URL+"/api/history/AAPL", nil); code != http.StatusServiceUnavailable {
		t.Errorf("GET history status = %d, want 503", code)
	}
}

func readDataLine(t *testing.T, r *bufio.Reader) model.PriceUpdate {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read sse line: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var u model.PriceUpdate
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &u); err != nil {
			t.Fatalf("decode sse payload %q: %v", line, err)
		}
		return u
	}
}

func TestStreamFiltered(t *testing.T) {
	env := newTestEnv(t)
	env.src.push(mkUpdate("AAPL", 189.45))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/api/stream?symbols=AAPL", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// Cached quote replayed on connect
	if u := readDataLine(t, reader); u.Symbol != "AAPL" || u.Price != 189.45 {
		t.Errorf("replayed update = %+v, want AAPL at 189.45", u)
	}

	// MSFT is filtered out, the next AAPL update comes through
	env.src.push(mkUpdate("MSFT", 378.61))
	env.src.push(mkUpdate("AAPL", 190.02))

	if u := readDataLine(t, reader); u.Symbol != "AAPL" || u.Price != 190.02 {
		t.Errorf("live update = %+v, want AAPL at 190.02", u)
	}
}

func TestStreamFirehose(t *testing.T) {
	env := newTestEnv(t)
	env.src.push(mkUpdate("AAPL", 189.45))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)

	if u := readDataLine(t, reader); u.Symbol != "AAPL" {
		t.Errorf("replayed update = %+v, want AAPL", u)
	}

	// Without a filter every symbol comes through
	env.src.push(mkUpdate("MSFT", 378.61))
	if u := readDataLine(t, reader); u.Symbol != "MSFT" {
		t.Errorf("live update = %+v, want MSFT", u)
	}
}

func TestServerStartStopRestoresWatchlist(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	src := &fakeSource{}
	hub := quotes.NewHub(src, logger)
	defer hub.Close()

	store, err := prefs.Open(":memory:")
	if err != nil {
		t.Fatalf("open prefs store: %v", err)
	}
	defer store.Close()

	if err := store.SaveWatchlist([]string{"AAPL"}); err != nil {
		t.Fatalf("seed watchlist: %v", err)
	}

	srv := New(Config{Addr: "127.0.0.1:0", Logger: logger}, hub, &fakeFeed{}, store, nil, nil)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := src.lastCall(); !reflect.DeepEqual(got, []string{"AAPL"}) {
		t.Errorf("upstream tickers after start = %v, want [AAPL]", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	// Stop released the watchlist pin
	if got := src.lastCall(); len(got) != 0 {
		t.Errorf("upstream tickers after stop = %v, want empty", got)
	}
}
