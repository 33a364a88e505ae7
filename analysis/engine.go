package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"
)

// EngineConfig configures a UCIEngine.
type EngineConfig struct {
	// Path is the engine binary (stockfish, ...). Required.
	Path string `yaml:"path"`
	// MoveTime is the search time per position. Default: 500ms.
	MoveTime time.Duration `yaml:"move_time"`
	// Depth limits the search depth when positive.
	Depth  int          `yaml:"depth"`
	Logger *slog.Logger `yaml:"-"`
}

// UCIEngine is an Analyzer backed by an external UCI engine process. Calls
// are serialized; the engine process is shared.
type UCIEngine struct {
	cfg    EngineConfig
	logger *slog.Logger

	mu  sync.Mutex
	eng *uci.Engine
}

// NewUCIEngine starts the engine and performs the UCI handshake.
func NewUCIEngine(cfg EngineConfig) (*UCIEngine, error) {
	if cfg.Path == "" {
		return nil, ErrNoEngine
	}
	if cfg.MoveTime <= 0 {
		cfg.MoveTime = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	eng, err := uci.New(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("analysis: start engine %s: %w", cfg.Path, err)
	}
	if err := eng.Run(uci.CmdUCI, uci.CmdIsReady, uci.CmdUCINewGame); err != nil {
		eng.Close()
		return nil, fmt.Errorf("analysis: engine handshake: %w", err)
	}
	cfg.Logger.Info("analysis: engine ready", "path", cfg.Path, "move_time", cfg.MoveTime)
	return &UCIEngine{cfg: cfg, logger: cfg.Logger, eng: eng}, nil
}

// Analyze searches fen. When ctx ends first, Analyze returns ctx.Err() and
// the search finishes in the background before the next call can start.
func (e *UCIEngine) Analyze(ctx context.Context, fen string) (Evaluation, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	pos := chess.NewGame(opt).Position()

	type result struct {
		ev  Evaluation
		err error
	}
	done := make(chan result, 1)
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.eng == nil {
			done <- result{err: ErrNoEngine}
			return
		}
		cmd := uci.CmdGo{MoveTime: e.cfg.MoveTime}
		if e.cfg.Depth > 0 {
			cmd.Depth = e.cfg.Depth
		}
		if err := e.eng.Run(uci.CmdPosition{Position: pos}, cmd); err != nil {
			done <- result{err: fmt.Errorf("analysis: search: %w", err)}
			return
		}
		res := e.eng.SearchResults()
		ev := Evaluation{
			FEN:   fen,
			CP:    res.Info.Score.CP,
			Mate:  res.Info.Score.Mate,
			Depth: res.Info.Depth,
			At:    time.Now(),
		}
		if res.BestMove != nil {
			ev.BestMove = res.BestMove.String()
		}
		// UCI scores are relative to the side to move.
		if pos.Turn() == chess.Black {
			ev.CP, ev.Mate = -ev.CP, -ev.Mate
		}
		done <- result{ev: ev}
	}()

	select {
	case <-ctx.Done():
		return Evaluation{}, ctx.Err()
	case r := <-done:
		return r.ev, r.err
	}
}

// Close stops the engine process.
func (e *UCIEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eng == nil {
		return nil
	}
	err := e.eng.Close()
	e.eng = nil
	return err
}
