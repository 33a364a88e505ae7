// Package observer turns page mutation signals into extraction cycles.
//
// A cycle reads the whole document once and hands it to a Handler. Signals
// come from the board script injected by Attach; bursts are coalesced by a
// quiet window bounded by a max wait, and a poll interval forces a cycle
// when the page has been silent for too long.
package observer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrDocumentLost is returned by Run after MaxErrors consecutive failed
// reads, typically because the tab or the browser is gone.
var ErrDocumentLost = errors.New("observer: document lost")

// Signal kinds reported by the board script.
const (
	SignalMutation = "mutation"
	SignalAttached = "attached"
	SignalNavigate = "navigate"
)

// Signal is one report from the page.
type Signal struct {
	Kind  string `json:"kind"`
	URL   string `json:"url,omitempty"`
	Count int    `json:"count,omitempty"`
}

// Document yields the current serialised page.
type Document interface {
	HTML(ctx context.Context) ([]byte, error)
}

// Handler consumes the document read by one cycle.
type Handler func(ctx context.Context, page []byte)

// Config for creating an Observer.
type Config struct {
	Document Document
	// Signals may be nil, in which case the observer only polls.
	Signals <-chan Signal
	Handle  Handler

	DebounceWindow  time.Duration
	DebounceMaxWait time.Duration
	// PollInterval forces a cycle after this long without one. Default: 2s.
	PollInterval time.Duration
	// Settle is the quiet period required after a navigation. Default: 500ms.
	Settle time.Duration
	// MaxErrors consecutive failed reads end Run with ErrDocumentLost.
	// Zero retries forever.
	MaxErrors int
	Logger    *slog.Logger
}

// Observer runs extraction cycles for a single page.
type Observer struct {
	doc     Document
	signals <-chan Signal
	handle  Handler
	logger  *slog.Logger

	debouncer *debouncer
	poll      time.Duration
	settle    time.Duration

	settleTimer *time.Timer
	settleC     <-chan time.Time
	lastCycle   time.Time
	maxErrors   int
	failures    int

	url    atomic.Value // string
	cycles atomic.Uint64
	errors atomic.Uint64
}

// New creates an Observer.
func New(cfg Config) *Observer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	if cfg.Handle == nil {
		cfg.Handle = func(context.Context, []byte) {}
	}
	o := &Observer{
		doc:     cfg.Document,
		signals: cfg.Signals,
		handle:  cfg.Handle,
		logger:  cfg.Logger,
		debouncer: newDebouncer(debounceConfig{
			Window:  cfg.DebounceWindow,
			MaxWait: cfg.DebounceMaxWait,
		}),
		poll:      cfg.PollInterval,
		settle:    cfg.Settle,
		maxErrors: cfg.MaxErrors,
	}
	o.url.Store("")
	return o
}

// Run performs an initial cycle, then reacts to signals until ctx ends.
// Cycles run on the caller's goroutine, one at a time.
func (o *Observer) Run(ctx context.Context) error {
	o.cycle(ctx)

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()
	defer o.debouncer.take()
	defer o.stopSettle()

	for {
		if o.maxErrors > 0 && o.failures >= o.maxErrors {
			return ErrDocumentLost
		}
		select {
		case <-ctx.Done():
			return nil

		case sig, ok := <-o.signals:
			if !ok {
				o.logger.Warn("observer: signal source closed, polling only")
				o.signals = nil
				continue
			}
			o.handleSignal(ctx, sig)

		case <-o.debouncer.timerC():
			if o.debouncer.take() {
				o.cycle(ctx)
			}

		case <-o.settleC:
			o.stopSettle()
			o.cycle(ctx)

		case <-ticker.C:
			if o.settleC != nil || time.Since(o.lastCycle) < o.poll {
				continue
			}
			o.debouncer.take()
			o.cycle(ctx)
		}
	}
}

func (o *Observer) handleSignal(ctx context.Context, sig Signal) {
	switch sig.Kind {
	case SignalNavigate:
		o.handleNavigate(sig.URL)
	case SignalAttached:
		o.handleAttached(ctx)
	default:
		if o.settleC != nil {
			o.settleTimer.Reset(o.settle)
			return
		}
		if o.debouncer.add() {
			o.debouncer.take()
			o.cycle(ctx)
		}
	}
}

// cycle reads the document and hands it to the handler.
func (o *Observer) cycle(ctx context.Context) {
	o.lastCycle = time.Now()
	page, err := o.doc.HTML(ctx)
	if err != nil {
		if ctx.Err() == nil {
			o.failures++
			o.errors.Add(1)
			o.logger.Warn("observer: read document", "error", err, "consecutive", o.failures)
		}
		return
	}
	o.failures = 0
	o.cycles.Add(1)
	o.handle(ctx, page)
}

// Cycles returns the number of completed document reads.
func (o *Observer) Cycles() uint64 { return o.cycles.Load() }

// Errors returns the number of failed document reads.
func (o *Observer) Errors() uint64 { return o.errors.Load() }

// URL returns the last in-page navigation target, if any.
func (o *Observer) URL() string { return o.url.Load().(string) }
