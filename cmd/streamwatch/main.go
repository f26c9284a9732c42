// streamwatch connects to a TickerPulse feed and prints normalized
// price updates to the console.
//
// Usage:
//
//	go run ./cmd/streamwatch -url ws://localhost:3001/ws -tickers AAPL,MSFT
//	go run ./cmd/streamwatch -config configs/pulsed.yaml -refresh
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/amitpatole/tickerpulse-ai-sub000/internal/config"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/model"
	"github.com/amitpatole/tickerpulse-ai-sub000/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "optional config file; overrides -url")
	wsURL := flag.String("url", "ws://localhost:3001/ws", "stream endpoint")
	tickers := flag.String("tickers", "AAPL,MSFT,GOOG", "comma-separated tickers to subscribe")
	refresh := flag.Bool("refresh", false, "request a full snapshot once connected")
	verbose := flag.Bool("verbose", false, "print full update JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	url := *wsURL
	symbols := strings.Split(*tickers, ",")

	if *configPath != "" {
		cfg, err := config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		url = cfg.ResolveWSURL()
		if len(cfg.Stream.Tickers) > 0 {
			symbols = cfg.Stream.Tickers
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	streamCfg := stream.DefaultConfig()
	streamCfg.URL = url

	client := stream.NewClient(streamCfg, logger)

	client.SetOnUpdate(func(u model.PriceUpdate) {
		if *verbose {
			data, _ := json.MarshalIndent(u, "", "  ")
			fmt.Printf("[QUOTE] %s\n", data)
		} else {
			fmt.Printf("[QUOTE] %-6s price=%.2f change=%+.2f (%+.2f%%) vol=%d ts=%s\n",
				u.Symbol, u.Price, u.Change, u.ChangePct, u.Volume, u.Timestamp)
		}
	})

	refreshPending := *refresh
	client.SetOnStatus(func(st stream.Status) {
		logger.Info("stream status changed", "status", st)
		if st == stream.StatusOpen && refreshPending {
			refreshPending = false
			client.Refresh()
		}
	})

	client.SetTickers(symbols)

	logger.Info("connecting", "url", url, "tickers", symbols)
	if err := client.Start(ctx); err != nil {
		logger.Error("failed to start stream client", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := client.Stats()
				logger.Info("stats",
					"status", stats.Status,
					"frames", stats.FramesReceived,
					"updates", stats.UpdatesDelivered,
					"parse_errors", stats.ParseErrors,
					"reconnects", stats.Reconnects,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	client.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}
