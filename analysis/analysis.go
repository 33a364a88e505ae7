package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoEngine is returned when no engine binary is configured.
var ErrNoEngine = errors.New("analysis: no engine configured")

// Evaluation is an engine verdict on one position. Scores are from white's
// point of view: positive favours white.
type Evaluation struct {
	FEN      string    `json:"fen"`
	CP       int       `json:"cp"`
	Mate     int       `json:"mate,omitempty"`
	Depth    int       `json:"depth,omitempty"`
	BestMove string    `json:"bestMove,omitempty"`
	At       time.Time `json:"at"`
}

// Analyzer evaluates a FEN position.
type Analyzer interface {
	Analyze(ctx context.Context, fen string) (Evaluation, error)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Analyzer Analyzer
	// Timeout bounds a single analysis. Default: 10s.
	Timeout time.Duration
	// OnResult is called from the Run goroutine for every fresh result.
	OnResult func(Evaluation)
	Logger   *slog.Logger
}

// Dispatcher runs one analysis at a time, always on the most recently
// submitted position. Positions submitted while an analysis runs replace
// each other; a result whose position was superseded is discarded.
type Dispatcher struct {
	analyzer Analyzer
	timeout  time.Duration
	onResult func(Evaluation)
	logger   *slog.Logger

	mu      sync.Mutex
	pending string
	gen     uint64 // bumped by every accepted Submit
	last    string // most recently accepted position
	latest  *Evaluation
	stale   uint64

	wake chan struct{}
}

// NewDispatcher creates a Dispatcher. Run must be called for it to work.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		analyzer: cfg.Analyzer,
		timeout:  cfg.Timeout,
		onResult: cfg.OnResult,
		logger:   cfg.Logger,
		wake:     make(chan struct{}, 1),
	}
}

// Submit queues fen for analysis, replacing any queued position. A position
// equal to the last accepted one is ignored unless its analysis failed.
// Submit never blocks.
func (d *Dispatcher) Submit(fen string) {
	d.mu.Lock()
	if fen == "" || fen == d.last {
		d.mu.Unlock()
		return
	}
	d.pending = fen
	d.last = fen
	d.gen++
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Latest returns the most recent fresh evaluation.
func (d *Dispatcher) Latest() (Evaluation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return Evaluation{}, false
	}
	return *d.latest, true
}

// Stale returns how many results were discarded because a newer position
// had been submitted meanwhile.
func (d *Dispatcher) Stale() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stale
}

// Run processes submissions until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}

		d.mu.Lock()
		fen, gen := d.pending, d.gen
		d.pending = ""
		d.mu.Unlock()
		if fen == "" {
			continue
		}

		actx, cancel := context.WithTimeout(ctx, d.timeout)
		ev, err := d.analyzer.Analyze(actx, fen)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Warn("analysis: analyze failed", "fen", fen, "error", err)
			// Let the same position be submitted again.
			d.mu.Lock()
			if gen == d.gen {
				d.last = ""
			}
			d.mu.Unlock()
			continue
		}
		ev.FEN = fen
		if ev.At.IsZero() {
			ev.At = time.Now()
		}

		d.mu.Lock()
		if gen != d.gen {
			d.stale++
			d.mu.Unlock()
			d.logger.Debug("analysis: stale result dropped", "fen", fen)
			continue
		}
		d.latest = &ev
		d.mu.Unlock()

		if d.onResult != nil {
			d.onResult(ev)
		}
	}
}

// String renders the score the way an evaluation bar labels it.
func (e Evaluation) String() string {
	if e.Mate != 0 {
		return fmt.Sprintf("M%d", e.Mate)
	}
	return fmt.Sprintf("%+.2f", float64(e.CP)/100)
}
