// Command boardview is a headless renderer: it subscribes to the relay and
// prints, for every snapshot, the visual transitions a board view would
// animate, one JSON object per line.
//
// Usage:
//
//	boardview -url ws://localhost:3000/ws
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hazyhaar/boardcast/reconcile"
	"github.com/hazyhaar/boardcast/snapshot"
	"github.com/hazyhaar/boardcast/transport"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "relay subscriber websocket URL")
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

	if err := run(ctx, logger, *url, os.Stdout); err != nil {
		logger.Error("boardview: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, url string, out io.Writer) error {
	v := newView(out)
	sub := transport.NewSubscriber(transport.SubscriberConfig{
		URL:        url,
		OnConnect:  v.reset,
		OnSnapshot: v.render,
		Logger:     logger,
	})
	return sub.Run(ctx)
}

// frame is one rendered update.
type frame struct {
	Reset bool           `json:"reset,omitempty"`
	Board string         `json:"board,omitempty"`
	Ops   []reconcile.Op `json:"ops,omitempty"`
}

// view holds what is currently rendered.
type view struct {
	mu   sync.Mutex
	enc  *json.Encoder
	prev *reconcile.Rendered
}

func newView(w io.Writer) *view {
	return &view{enc: json.NewEncoder(w)}
}

// reset forgets the rendered state: the relay replays its current snapshot
// on connect, which is rendered from scratch.
func (v *view) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prev = nil
	v.enc.Encode(frame{Reset: true})
}

func (v *view) render(s snapshot.GameSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ops, next := reconcile.Reconcile(v.prev, s)
	v.prev = &next
	if len(ops) == 0 {
		return
	}
	v.enc.Encode(frame{Board: next.Snapshot.Board, Ops: ops})
}
