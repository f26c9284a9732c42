package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/api"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/prefs"
)

type statusResponse struct {
	Status           string         `json:"status"`
	FramesReceived   int64          `json:"frames_received"`
	UpdatesDelivered int64          `json:"updates_delivered"`
	ParseErrors      int64          `json:"parse_errors"`
	Reconnects       int64          `json:"reconnects"`
	ConnectedAt      string         `json:"connected_at,omitempty"`
	Symbols          []string       `json:"symbols"`
	Recorder         *recorderStats `json:"recorder,omitempty"`
}

type recorderStats struct {
	Inserts   int64 `json:"inserts"`
	Conflicts int64 `json:"conflicts"`
	Drops     int64 `json:"drops"`
	Errors    int64 `json:"errors"`
	Flushes   int64 `json:"flushes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.feed.Stats()

	resp := statusResponse{
		Status:           string(stats.Status),
		FramesReceived:   stats.FramesReceived,
		UpdatesDelivered: stats.UpdatesDelivered,
		ParseErrors:      stats.ParseErrors,
		Reconnects:       stats.Reconnects,
		Symbols:          s.hub.Symbols(),
	}
	if !stats.ConnectedAt.IsZero() {
		resp.ConnectedAt = stats.ConnectedAt.UTC().Format(time.RFC3339)
	}
	if s.rec != nil {
		m := s.rec.Stats()
		resp.Recorder = &recorderStats{
			Inserts:   m.Inserts,
			Conflicts: m.Conflicts,
			Drops:     m.Drops,
			Errors:    m.Errors,
			Flushes:   m.Flushes,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]model.PriceUpdate{"quotes": s.hub.Snapshot()})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	u, ok := s.hub.Latest(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no quote for symbol")
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.PriceUpdate{"quote": u})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.rest == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	interval := r.URL.Query().Get("interval")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	candles, err := s.rest.GetHistory(r.Context(), symbol, interval, limit)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "no history for symbol")
			return
		}
		s.logger.Error("history fetch failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusBadGateway, "history fetch failed")
		return
	}
	if candles == nil {
		candles = []model.Candle{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"candles": candles,
	})
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.store.Watchlist()
	if err != nil {
		s.logger.Error("load watchlist failed", "error", err)
		writeError(w, http.StatusInternalServerError, "load watchlist failed")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"symbols": symbols})
}

func (s *Server) handlePutWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	cleaned, err := s.setWatchlist(req.Symbols)
	if err != nil {
		s.logger.Error("save watchlist failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save watchlist failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"symbols": cleaned})
}

func (s *Server) handleGetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, err := s.store.Get(key)
	if errors.Is(err, prefs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}
	if err != nil {
		s.logger.Error("get preference failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "get preference failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) handlePutPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.store.Put(key, req.Value); err != nil {
		s.logger.Error("put preference failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "put preference failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := s.store.Delete(key); err != nil {
		s.logger.Error("delete preference failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "delete preference failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
