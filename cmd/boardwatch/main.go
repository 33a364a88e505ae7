// Command boardwatch watches a live chess game page and streams its
// snapshots to the configured sinks.
//
// Usage:
//
//	boardwatch -config boardwatch.yaml
//	boardwatch -url https://example.com/game/42 -relay ws://localhost:3000/ws/producer
//	boardwatch -url https://example.com/game/42                  # stdout JSON lines
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/boardcast/domwatch"
)

func main() {
	configPath := flag.String("config", "", "path to boardwatch.yaml config file")
	pageURL := flag.String("url", "", "game page URL (overrides config)")
	mode := flag.String("mode", "", "acquisition mode: browser, http, auto (overrides config)")
	relayURL := flag.String("relay", "", "relay producer websocket URL, adds a relay sink")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pageURL, *mode, *relayURL); err != nil {
		logger.Error("boardwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pageURL, mode, relayURL string) error {
	cfg := &domwatch.Config{}
	if configPath != "" {
		var err error
		if cfg, err = domwatch.LoadConfigFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if pageURL != "" {
		cfg.Page.URL = pageURL
	}
	if mode != "" {
		cfg.Page.Mode = mode
	}
	if relayURL != "" {
		cfg.Sinks = append(cfg.Sinks, domwatch.SinkConfig{Type: "relay", URL: relayURL})
	}
	if cfg.Page.URL == "" {
		fmt.Fprintln(os.Stderr, "usage: boardwatch -config <file> | -url <game url> [-relay <ws url>]")
		os.Exit(2)
	}

	sinks, err := domwatch.BuildSinks(cfg.Sinks, os.Stdout, logger)
	if err != nil {
		return err
	}
	w := domwatch.New(cfg, logger, sinks...)
	defer w.Close()

	err = w.Run(ctx)
	logger.Info("boardwatch: stopped", "stats", w.Stats())
	return err
}
