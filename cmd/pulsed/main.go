// pulsed is the TickerPulse market data daemon. It keeps a WebSocket
// subscription to the upstream feed, fans normalized price updates out
// to dashboard clients over SSE, optionally records them to PostgreSQL,
// and serves the REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/api"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/config"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/database"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/httpapi"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/poller"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/prefs"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/quotes"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/recorder"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/stream"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/pulsed.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// .env is optional; the YAML loader expands ${VAR} from the environment
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting pulsed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	wsURL := cfg.ResolveWSURL()
	logger.Info("configuration loaded",
		"ws_url", wsURL,
		"api_url", cfg.API.BaseURL,
		"recorder_enabled", cfg.Recorder.Enabled,
		"poller_enabled", cfg.Poller.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Preferences store
	store, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		logger.Error("failed to open prefs store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Stream client
	streamCfg := stream.DefaultConfig()
	streamCfg.URL = wsURL
	streamCfg.MaxAttempts = cfg.Stream.MaxAttempts
	streamCfg.BufferSize = cfg.Stream.BufferSize
	streamCfg.HandshakeTimeout = cfg.Stream.HandshakeTimeout
	streamCfg.WriteTimeout = cfg.Stream.WriteTimeout
	if ladder := cfg.Stream.Backoff(); ladder != nil {
		streamCfg.Backoff = stream.BackoffTable(ladder)
	}

	client := stream.NewClient(streamCfg, logger)
	client.SetOnStatus(func(st stream.Status) {
		logger.Info("stream status changed", "status", st)
	})

	// Quote hub claims the client's update callback
	hub := quotes.NewHub(client, logger)
	defer hub.Close()

	// Seed the subscription from config unless a saved watchlist exists;
	// the HTTP server restores the watchlist pin itself.
	saved, err := store.Watchlist()
	if err != nil {
		logger.Warn("load saved watchlist failed", "error", err)
	}
	if len(saved) == 0 && len(cfg.Stream.Tickers) > 0 {
		hub.Pin(cfg.Stream.Tickers...)
		logger.Info("seeded subscription from config", "tickers", cfg.Stream.Tickers)
	}

	// Recorder (optional)
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := recorder.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}

		rec = recorder.New(recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			BufferSize:    cfg.Recorder.BufferSize,
			Logger:        logger,
		}, pool)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}

		removeTap := hub.AddListener(rec.Record)
		defer removeTap()

		logger.Info("recorder started")
	}

	// REST client, shared by the quote poller and the history proxy
	restOpts := []api.ClientOption{
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithLogger(logger),
	}
	if cfg.API.RateLimitRPS > 0 {
		burst := cfg.API.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		restOpts = append(restOpts, api.WithRateLimit(cfg.API.RateLimitRPS, burst))
	}
	rest := api.NewClient(cfg.API.BaseURL, cfg.API.APIKey, restOpts...)

	// HTTP API
	srv := httpapi.New(httpapi.Config{Addr: cfg.Server.Addr, Logger: logger}, hub, client, store, rec, rest)
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start http api", "error", err)
		os.Exit(1)
	}

	// Quote poller (optional) warms the cache before the stream opens
	// and keeps refreshing it across reconnect gaps
	var qp *poller.Poller
	if cfg.Poller.Enabled {
		pollerCfg := poller.DefaultConfig()
		pollerCfg.Interval = cfg.Poller.Interval()
		qp = poller.New(pollerCfg, rest, hub, hub, logger)
		if err := qp.Start(ctx); err != nil {
			logger.Error("failed to start poller", "error", err)
			os.Exit(1)
		}
	}

	// Stream client last so early updates find their consumers
	if err := client.Start(ctx); err != nil {
		logger.Error("failed to start stream client", "error", err)
		os.Exit(1)
	}

	logger.Info("pulsed running",
		"addr", cfg.Server.Addr,
		"symbols", hub.Symbols(),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	srv.Stop(shutdownCtx)
	if qp != nil {
		qp.Stop(shutdownCtx)
	}
	client.Stop(shutdownCtx)
	hub.Close()
	if rec != nil {
		rec.Stop(shutdownCtx)
	}

	logger.Info("pulsed stopped")
}
