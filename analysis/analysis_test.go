package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/boardcast/snapshot"
)

func TestPosition_Start(t *testing.T) {
	s := snapshot.GameSnapshot{Board: snapshot.StartingBoard, Turn: snapshot.White}
	got, err := Position(s)
	if err != nil {
		t.Fatal(err)
	}
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	if got != want {
		t.Errorf("Position: got %q, want %q", got, want)
	}
}

func TestPosition_CastlingAndMoveNumber(t *testing.T) {
	s := snapshot.GameSnapshot{
		Board: "r3k3/8/8/8/8/8/8/4K2R",
		Turn:  snapshot.Black,
		MoveList: []snapshot.MoveEntry{
			{Number: 23, White: &snapshot.MoveText{Text: "Rh1"}},
		},
	}
	got, err := Position(s)
	if err != nil {
		t.Fatal(err)
	}
	if want := "r3k3/8/8/8/8/8/8/4K2R b Kq - 0 23"; got != want {
		t.Errorf("Position: got %q, want %q", got, want)
	}

	s.MoveList[0].Black = &snapshot.MoveText{Text: "Ra7"}
	s.Turn = snapshot.White
	s.Board = "4k3/r7/8/8/8/8/8/4K2R"
	got, _ = Position(s)
	if want := "4k3/r7/8/8/8/8/8/4K2R w K - 0 24"; got != want {
		t.Errorf("Position: got %q, want %q", got, want)
	}
}

func TestPosition_BadBoard(t *testing.T) {
	_, err := Position(snapshot.GameSnapshot{Board: "8/8/8"})
	if !errors.Is(err, ErrBadPosition) {
		t.Errorf("Position: got %v, want ErrBadPosition", err)
	}
}

func TestNewUCIEngine_NoPath(t *testing.T) {
	if _, err := NewUCIEngine(EngineConfig{}); !errors.Is(err, ErrNoEngine) {
		t.Errorf("NewUCIEngine: got %v, want ErrNoEngine", err)
	}
}

func TestEvaluation_String(t *testing.T) {
	if got := (Evaluation{CP: 35}).String(); got != "+0.35" {
		t.Errorf("String: got %q", got)
	}
	if got := (Evaluation{Mate: -3}).String(); got != "M-3" {
		t.Errorf("String: got %q", got)
	}
}

// gatedAnalyzer blocks every call until released and records the positions
// it was asked about.
type gatedAnalyzer struct {
	mu      sync.Mutex
	calls   []string
	started chan string
	release chan struct{}
}

func newGated() *gatedAnalyzer {
	return &gatedAnalyzer{started: make(chan string, 16), release: make(chan struct{})}
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, fen string) (Evaluation, error) {
	g.mu.Lock()
	g.calls = append(g.calls, fen)
	g.mu.Unlock()
	g.started <- fen
	select {
	case <-g.release:
		return Evaluation{CP: len(fen)}, nil
	case <-ctx.Done():
		return Evaluation{}, ctx.Err()
	}
}

func (g *gatedAnalyzer) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func waitStarted(t *testing.T, g *gatedAnalyzer, want string) {
	t.Helper()
	select {
	case got := <-g.started:
		if got != want {
			t.Fatalf("analysis started on %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("analysis of %q never started", want)
	}
}

func TestDispatcher_LatestWins(t *testing.T) {
	g := newGated()
	results := make(chan Evaluation, 4)
	d := NewDispatcher(DispatcherConfig{
		Analyzer: g,
		OnResult: func(ev Evaluation) { results <- ev },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Submit("A")
	waitStarted(t, g, "A")

	// While A runs, B is superseded by C before it is ever started.
	d.Submit("B")
	d.Submit("C")
	g.release <- struct{}{}

	waitStarted(t, g, "C")
	g.release <- struct{}{}

	select {
	case ev := <-results:
		if ev.FEN != "C" {
			t.Errorf("result: got %q, want C", ev.FEN)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}
	if calls := g.Calls(); len(calls) != 2 || calls[0] != "A" || calls[1] != "C" {
		t.Errorf("calls: got %v, want [A C]", calls)
	}
	if d.Stale() != 1 {
		t.Errorf("Stale: got %d, want 1", d.Stale())
	}
	if ev, ok := d.Latest(); !ok || ev.FEN != "C" {
		t.Errorf("Latest: got %+v, %v", ev, ok)
	}
}

func TestDispatcher_IgnoresRepeatedPosition(t *testing.T) {
	g := newGated()
	d := NewDispatcher(DispatcherConfig{Analyzer: g, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Submit("A")
	waitStarted(t, g, "A")
	d.Submit("A")
	g.release <- struct{}{}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := d.Latest(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no result")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if calls := g.Calls(); len(calls) != 1 {
		t.Errorf("calls: got %v, want one", calls)
	}
}

// flakyAnalyzer fails its first call and succeeds afterwards.
type flakyAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (f *flakyAnalyzer) Analyze(ctx context.Context, fen string) (Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return Evaluation{}, errors.New("engine hiccup")
	}
	return Evaluation{CP: 12}, nil
}

func (f *flakyAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDispatcher_RetriesPositionAfterFailure(t *testing.T) {
	f := &flakyAnalyzer{}
	d := NewDispatcher(DispatcherConfig{Analyzer: f, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Submit("A")
	deadline := time.After(2 * time.Second)
	for f.Calls() < 1 {
		select {
		case <-deadline:
			t.Fatal("analysis never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Resubmitting the failed position must trigger a new analysis.
	for {
		d.Submit("A")
		if ev, ok := d.Latest(); ok {
			if ev.FEN != "A" || ev.CP != 12 {
				t.Errorf("Latest: got %+v, want A at 12cp", ev)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("failed position never analysed again, calls=%d", f.Calls())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Analyzer: newGated()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
