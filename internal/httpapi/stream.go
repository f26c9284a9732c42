package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/quotes"
)

const keepaliveInterval = 15 * time.Second

// handleStream sends live price updates as Server-Sent Events. With a
// symbols query parameter the stream is filtered to those symbols;
// without one it carries every update. Cached quotes are replayed
// first so the client renders immediately.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush() // Send headers immediately so the browser's EventSource fires onopen

	var (
		updates <-chan model.PriceUpdate
		detach  func()
	)
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		sub := s.hub.Subscribe(strings.Split(raw, ",")...)
		updates = sub.Updates()
		detach = sub.Close

		for _, sym := range sub.Symbols() {
			if u, ok := s.hub.Latest(sym); ok {
				writeEvent(w, u)
			}
		}
	} else {
		ch := make(chan model.PriceUpdate, quotes.SubscriptionBuffer)
		updates = ch
		detach = s.hub.AddListener(func(u model.PriceUpdate) {
			select {
			case ch <- u:
			default:
				// Drop update if the channel is full (slow client)
			}
		})

		for _, u := range s.hub.Snapshot() {
			writeEvent(w, u)
		}
	}
	defer detach()
	flusher.Flush()

	s.logger.Debug("sse stream opened", "remote", r.RemoteAddr)

	done := r.Context().Done()
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-done:
			s.logger.Debug("sse stream closed", "remote", r.RemoteAddr)
			return

		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, u); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, u model.PriceUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
