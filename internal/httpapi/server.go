package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/api"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/prefs"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/quotes"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/recorder"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/stream"
)

// Config contains HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Logger for server events. Defaults to slog.Default().
	Logger *slog.Logger
}

// FeedStatus is the slice of the stream client the API reports on.
type FeedStatus interface {
	Status() stream.Status
	Stats() stream.Stats
}

// Server serves the dashboard HTTP API.
type Server struct {
	cfg    Config
	logger *slog.Logger

	hub   *quotes.Hub
	feed  FeedStatus
	store *prefs.Store
	rec   *recorder.Recorder
	rest  *api.Client

	httpServer *http.Server

	watchMu    sync.Mutex
	unpinWatch func()
}

// New creates a Server. rec may be nil when recording is disabled; rest
// may be nil, in which case history requests answer 503.
func New(cfg Config, hub *quotes.Hub, feed FeedStatus, store *prefs.Store, rec *recorder.Recorder, rest *api.Client) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		hub:    hub,
		feed:   feed,
		store:  store,
		rec:    rec,
		rest:   rest,
	}
}

// Handler builds the route tree. Exposed separately so tests can drive
// the API without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Get("/quotes", s.handleQuotes)
		api.Get("/quotes/{symbol}", s.handleQuote)
		api.Get("/history/{symbol}", s.handleHistory)
		api.Get("/stream", s.handleStream)
		api.Get("/watchlist", s.handleGetWatchlist)
		api.Put("/watchlist", s.handlePutWatchlist)
		api.Get("/prefs/{key}", s.handleGetPref)
		api.Put("/prefs/{key}", s.handlePutPref)
		api.Delete("/prefs/{key}", s.handleDeletePref)
	})

	return r
}

// Start restores the saved watchlist pin and begins serving.
func (s *Server) Start(ctx context.Context) error {
	symbols, err := s.store.Watchlist()
	if err != nil {
		s.logger.Warn("load saved watchlist failed", "error", err)
	} else if len(symbols) > 0 {
		s.pinWatchlist(symbols)
		s.logger.Info("restored watchlist", "symbols", symbols)
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	s.logger.Info("http api listening", "addr", s.cfg.Addr)
	return nil
}

// Stop releases the watchlist pin and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.releaseWatchlist()

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("http api stopped")
	return nil
}

// setWatchlist persists and pins a new watchlist, returning the
// normalized symbols.
func (s *Server) setWatchlist(symbols []string) ([]string, error) {
	cleaned := quotes.NormalizeSymbols(symbols)
	if err := s.store.SaveWatchlist(cleaned); err != nil {
		return nil, err
	}
	s.pinWatchlist(cleaned)
	return cleaned, nil
}

// pinWatchlist pins the new symbols before releasing the previous pin
// so symbols present in both stay referenced throughout.
func (s *Server) pinWatchlist(symbols []string) {
	unpin := s.hub.Pin(symbols...)

	s.watchMu.Lock()
	old := s.unpinWatch
	s.unpinWatch = unpin
	s.watchMu.Unlock()

	if old != nil {
		old()
	}
}

func (s *Server) releaseWatchlist() {
	s.watchMu.Lock()
	unpin := s.unpinWatch
	s.unpinWatch = nil
	s.watchMu.Unlock()

	if unpin != nil {
		unpin()
	}
}
