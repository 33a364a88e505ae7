// Command boardcast is the snapshot relay: producers push game snapshots
// over a websocket, renderers subscribe to the latest one.
//
// Usage:
//
//	boardcast                                 # listen on :3000, no journal, no engine
//	boardcast -config boardcast.yaml
//	boardcast -journal games.db -engine /usr/bin/stockfish
//	boardcast -allow-origin '*'                # accept any browser origin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/boardcast/analysis"
	"github.com/hazyhaar/boardcast/hub"
	"github.com/hazyhaar/boardcast/journal"
	"github.com/hazyhaar/boardcast/relay"
)

func main() {
	configPath := flag.String("config", "", "path to boardcast.yaml config file")
	listen := flag.String("listen", "", "listen address (overrides config, default :3000)")
	journalPath := flag.String("journal", "", "SQLite journal path (overrides config)")
	enginePath := flag.String("engine", "", "UCI engine binary (overrides config)")
	allowOrigin := flag.String("allow-origin", "", "comma-separated websocket origin host patterns, e.g. '*' or 'localhost:*' (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &relay.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = relay.LoadConfig(*configPath); err != nil {
			logger.Error("boardcast: fatal", "error", err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *journalPath != "" {
		cfg.Journal = *journalPath
	}
	if *enginePath != "" {
		cfg.Engine.Path = *enginePath
	}
	if *allowOrigin != "" {
		cfg.AllowOrigins = strings.Split(*allowOrigin, ",")
	}
	cfg.ApplyDefaults()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("boardcast: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *relay.Config) error {
	h := hub.New(hub.Config{Logger: logger})
	opts := []relay.Option{relay.WithLogger(logger)}

	if cfg.Journal != "" {
		st, err := journal.Open(cfg.Journal, journal.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()
		opts = append(opts, relay.WithJournal(st))
		logger.Info("boardcast: journal enabled", "path", cfg.Journal)
	}

	if cfg.Engine.Path != "" {
		cfg.Engine.Logger = logger
		eng, err := analysis.NewUCIEngine(cfg.Engine)
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer eng.Close()
		opts = append(opts, relay.WithDispatcher(analysis.NewDispatcher(analysis.DispatcherConfig{
			Analyzer: eng,
			Logger:   logger,
		})))
	}

	srv := relay.New(*cfg, h, opts...)
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		logger.Info("boardcast: listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Subscribers get a going-away close before the listener stops.
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	err := g.Wait()
	logger.Info("boardcast: stopped", "stats", srv.Stats())
	return err
}
