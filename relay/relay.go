// Package relay is the network face of the broadcast hub: producers push
// snapshots over a websocket, renderers subscribe over another, and the
// current state, its position, evaluation and history are readable over
// HTTP and MCP.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/boardcast/analysis"
	"github.com/hazyhaar/boardcast/hub"
	"github.com/hazyhaar/boardcast/idgen"
	"github.com/hazyhaar/boardcast/journal"
	"github.com/hazyhaar/boardcast/snapshot"
)

// Server relays snapshots between producers and renderers.
type Server struct {
	cfg        Config
	hub        *hub.Hub
	journal    *journal.Store
	dispatcher *analysis.Dispatcher
	logger     *slog.Logger
	origins    []string
	mcp        *mcp.Server
	ep         endpoints

	newRequestID idgen.Generator
	started      time.Time

	ingested atomic.Uint64
	rejected atomic.Uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJournal records every published snapshot in st.
func WithJournal(st *journal.Store) Option {
	return func(s *Server) { s.journal = st }
}

// WithDispatcher submits the position of every published snapshot to d.
func WithDispatcher(d *analysis.Dispatcher) Option {
	return func(s *Server) { s.dispatcher = d }
}

// New creates a Server around h.
func New(cfg Config, h *hub.Hub, opts ...Option) *Server {
	cfg.ApplyDefaults()
	s := &Server{
		cfg:     cfg,
		hub:     h,
		logger:  slog.Default(),
		origins: originPatterns(cfg.AllowOrigins),

		newRequestID: idgen.Prefixed("req_", idgen.Default),
		started:      time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.buildEndpoints()
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "boardcast", Version: "1.0.0"}, nil)
	s.RegisterMCP(s.mcp)
	return s
}

// Ingest decodes one producer message and publishes it. Fields that violate
// the snapshot invariants are replaced by safe defaults before publication.
func (s *Server) Ingest(data []byte) (uint64, error) {
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		s.rejected.Add(1)
		return 0, fmt.Errorf("relay: decode snapshot: %w", err)
	}
	board, errs := snapshot.SanitizeBoard(snap.Board)
	if len(errs) > 0 {
		s.logger.Warn("relay: board invariant violated", "error", errors.Join(errs...))
	}
	snap.Board = board
	if !snap.Orientation.Valid() {
		snap.Orientation = snapshot.White
	}
	if !snap.Turn.Valid() {
		snap.Turn = snapshot.White
	}
	seq, err := s.hub.Publish(snap)
	if err != nil {
		return 0, fmt.Errorf("relay: publish: %w", err)
	}
	s.ingested.Add(1)
	return seq, nil
}

// Run drives the hub followers (journal, analysis) until ctx ends. It
// returns nil on cancellation.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.journal != nil {
		g.Go(func() error { return s.follow(ctx, "journal", s.record) })
	}
	if s.dispatcher != nil {
		g.Go(func() error { return s.dispatcher.Run(ctx) })
		g.Go(func() error { return s.follow(ctx, "analysis", s.analyze) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// follow feeds every hub update to fn until ctx ends or the hub closes.
// Followers see the latest value only; intermediate snapshots published
// while fn runs are skipped.
func (s *Server) follow(ctx context.Context, name string, fn func(context.Context, hub.Update)) error {
	sub := s.hub.Subscribe()
	defer sub.Close()
	s.logger.Debug("relay: follower started", "follower", name, "subscriber", sub.ID())
	for {
		u, err := sub.Next(ctx)
		if errors.Is(err, hub.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(ctx, u)
	}
}

func (s *Server) record(ctx context.Context, u hub.Update) {
	if _, err := s.journal.Append(ctx, u.Seq, u.Snapshot); err != nil && ctx.Err() == nil {
		s.logger.Warn("relay: journal append", "seq", u.Seq, "error", err)
	}
}

func (s *Server) analyze(_ context.Context, u hub.Update) {
	fen, err := analysis.Position(u.Snapshot)
	if err != nil {
		s.logger.Debug("relay: no position", "seq", u.Seq, "error", err)
		return
	}
	s.dispatcher.Submit(fen)
}

// Stats is the relay health report.
type Stats struct {
	Hub      hub.Stats    `json:"hub"`
	Ingested uint64       `json:"ingested"`
	Rejected uint64       `json:"rejected"`
	Journal  bool         `json:"journal"`
	Analysis bool         `json:"analysis"`
	Runtime  RuntimeStats `json:"runtime"`
}

// Stats reports hub and ingestion counters.
func (s *Server) Stats() Stats {
	return Stats{
		Hub:      s.hub.Stats(),
		Ingested: s.ingested.Load(),
		Rejected: s.rejected.Load(),
		Journal:  s.journal != nil,
		Analysis: s.dispatcher != nil,
		Runtime:  readRuntime(s.started),
	}
}
