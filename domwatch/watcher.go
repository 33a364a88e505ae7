// Package domwatch watches a live chess game page and emits a
// snapshot.GameSnapshot every time the observable game state changes.
//
// The page is acquired with a stealth Chrome tab, or with plain HTTP polling
// when its server-rendered HTML already carries the board. Each extraction
// cycle reads the whole document, extracts a snapshot, drops it when it
// carries nothing new, and hands the rest to the configured sinks.
package domwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/boardcast/domwatch/internal/browser"
	"github.com/hazyhaar/boardcast/domwatch/internal/config"
	"github.com/hazyhaar/boardcast/domwatch/internal/fetcher"
	"github.com/hazyhaar/boardcast/domwatch/internal/observer"
	"github.com/hazyhaar/boardcast/domwatch/internal/sink"
	"github.com/hazyhaar/boardcast/extract"
	"github.com/hazyhaar/boardcast/filter"
)

// Acquisition modes.
const (
	ModeBrowser = "browser"
	ModeHTTP    = "http"
	ModeAuto    = "auto"
)

// maxReadErrors consecutive failed document reads end a browser session.
const maxReadErrors = 5

// Watcher is the top-level orchestrator for one game page. It manages the
// browser, the observer and the sinks.
type Watcher struct {
	cfg       *config.Config
	mgr       *browser.Manager
	fetch     *fetcher.Fetcher
	sinkR     *sink.Router
	extractor *extract.Extractor
	filter    *filter.Filter
	logger    *slog.Logger

	mu       sync.Mutex
	endSess  context.CancelFunc
	recycled chan struct{}

	emitted    atomic.Uint64
	suppressed atomic.Uint64
	sessions   atomic.Uint64
}

// New creates a Watcher from configuration. Snapshots go to every sink.
func New(cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             browser.ParseMode(cfg.Browser.Stealth),
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	return &Watcher{
		cfg:   cfg,
		mgr:   mgr,
		fetch: fetcher.New(fetcher.WithLogger(logger)),
		sinkR: sink.NewRouter(logger, sinks...),
		extractor: extract.New(
			extract.WithLogger(logger),
			extract.WithMoveListLimit(cfg.MoveListLimit),
		),
		filter:   filter.New(filter.State{}, filter.WithLogger(logger)),
		logger:   logger,
		recycled: make(chan struct{}, 1),
	}
}

// Run watches the configured page until ctx ends. It returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Page.URL == "" {
		return fmt.Errorf("domwatch: no page url configured")
	}
	mode := w.resolveMode(ctx)
	w.logger.Info("domwatch: watching page", "url", w.cfg.Page.URL, "mode", mode)
	if mode == ModeHTTP {
		return w.runHTTP(ctx)
	}
	return w.runBrowser(ctx)
}

// resolveMode picks the acquisition path. auto fetches the page once and
// only skips the browser when the static HTML already shows a board.
func (w *Watcher) resolveMode(ctx context.Context) string {
	switch w.cfg.Page.Mode {
	case ModeHTTP:
		return ModeHTTP
	case ModeAuto:
		res, err := w.fetch.Fetch(ctx, w.cfg.Page.URL, "", "")
		if err != nil {
			w.logger.Warn("domwatch: auto-detect fetch failed, using browser",
				"url", w.cfg.Page.URL, "error", err)
			return ModeBrowser
		}
		if fetcher.Sufficient(res.Body, w.cfg.Page.BoardSelector) {
			return ModeHTTP
		}
		w.logger.Info("domwatch: no board in static HTML, using browser", "url", w.cfg.Page.URL)
		return ModeBrowser
	default:
		return ModeBrowser
	}
}

func (w *Watcher) runHTTP(ctx context.Context) error {
	w.sessions.Add(1)
	obs := observer.New(observer.Config{
		Document:     w.fetch.Page(w.cfg.Page.URL),
		Handle:       w.handle,
		PollInterval: w.cfg.PollInterval,
		Logger:       w.logger,
	})
	return obs.Run(ctx)
}

func (w *Watcher) runBrowser(ctx context.Context) error {
	if _, err := w.mgr.Start(ctx); err != nil {
		return fmt.Errorf("domwatch: start browser: %w", err)
	}
	w.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: w.endSession,
		AfterRecycle: func(*rod.Browser) {
			select {
			case w.recycled <- struct{}{}:
			default:
			}
		},
	})

	for {
		sctx, cancel := context.WithCancel(ctx)
		w.mu.Lock()
		w.endSess = cancel
		w.mu.Unlock()

		err := w.session(sctx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.logger.Error("domwatch: session ended", "url", w.cfg.Page.URL, "error", err)
		}

		// Reopen once Chrome has been recycled, or after a pause.
		select {
		case <-ctx.Done():
			return nil
		case <-w.recycled:
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// session opens the game tab and observes it until the tab is lost or ctx
// ends.
func (w *Watcher) session(ctx context.Context) error {
	w.sessions.Add(1)
	tab, err := browser.OpenTab(ctx, w.mgr, w.cfg.Page.URL, w.cfg.Page.LoadTimeout)
	if err != nil {
		return err
	}
	defer tab.Close()

	wctx, cancel := context.WithTimeout(ctx, w.cfg.Page.LoadTimeout)
	err = tab.WaitBoard(wctx, w.cfg.Page.BoardSelector)
	cancel()
	if err != nil {
		// The injected script keeps looking for the board.
		w.logger.Warn("domwatch: board not rendered yet", "url", w.cfg.Page.URL, "error", err)
	}

	signals, err := observer.Attach(ctx, tab, w.cfg.Page.BoardSelector, w.logger)
	if err != nil {
		return err
	}
	obs := observer.New(observer.Config{
		Document:        tab,
		Signals:         signals,
		Handle:          w.handle,
		DebounceWindow:  w.cfg.Debounce.Window,
		DebounceMaxWait: w.cfg.Debounce.MaxWait,
		PollInterval:    w.cfg.PollInterval,
		MaxErrors:       maxReadErrors,
		Logger:          w.logger,
	})
	err = obs.Run(ctx)
	if errors.Is(err, observer.ErrDocumentLost) {
		return fmt.Errorf("domwatch: %w", err)
	}
	return err
}

// endSession stops the current browser session before Chrome is recycled.
func (w *Watcher) endSession() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.endSess != nil {
		w.endSess()
	}
}

// handle runs one extraction cycle on a serialised page. It is only called
// from the observer goroutine.
func (w *Watcher) handle(ctx context.Context, page []byte) {
	raw := w.extractor.ExtractHTML(page)
	snap, ok := w.filter.Apply(raw)
	if !ok {
		w.suppressed.Add(1)
		return
	}
	w.emitted.Add(1)
	if snap.IsNewGame {
		w.logger.Info("domwatch: new game detected", "board", snap.Board)
	}
	if err := w.sinkR.Publish(ctx, snap); err != nil {
		w.logger.Warn("domwatch: publish failed", "error", err)
	}
}

// Stats is a point-in-time view of the watcher's counters.
type Stats struct {
	Emitted    uint64 `json:"emitted"`
	Suppressed uint64 `json:"suppressed"`
	Sessions   uint64 `json:"sessions"`
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Emitted:    w.emitted.Load(),
		Suppressed: w.suppressed.Load(),
		Sessions:   w.sessions.Load(),
	}
}

// Close shuts down the browser and the sinks.
func (w *Watcher) Close() error {
	w.mgr.Close()
	return w.sinkR.Close()
}
