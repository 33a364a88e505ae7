package observer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDocument struct {
	reads atomic.Int64
	fail  atomic.Bool
}

func (d *fakeDocument) HTML(context.Context) ([]byte, error) {
	n := d.reads.Add(1)
	if d.fail.Load() {
		return nil, errors.New("target closed")
	}
	return []byte("<html>" + string(rune('a'+n%26)) + "</html>"), nil
}

type harness struct {
	obs     *Observer
	doc     *fakeDocument
	signals chan Signal
	handled atomic.Int64
	cancel  context.CancelFunc
	done    chan error
}

func start(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{doc: &fakeDocument{}, signals: make(chan Signal, 64), done: make(chan error, 1)}
	cfg.Document = h.doc
	cfg.Signals = h.signals
	cfg.Handle = func(_ context.Context, page []byte) {
		if len(page) > 0 {
			h.handled.Add(1)
		}
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
	}
	h.obs = New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.obs.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestObserver_InitialCycle(t *testing.T) {
	h := start(t, Config{})
	eventually(t, "initial cycle", func() bool { return h.handled.Load() == 1 })
	if h.obs.Cycles() != 1 {
		t.Errorf("Cycles: got %d, want 1", h.obs.Cycles())
	}
}

func TestObserver_BurstCoalesced(t *testing.T) {
	h := start(t, Config{DebounceWindow: 30 * time.Millisecond, DebounceMaxWait: time.Minute})
	eventually(t, "initial cycle", func() bool { return h.handled.Load() == 1 })

	for i := 0; i < 10; i++ {
		h.signals <- Signal{Kind: SignalMutation, Count: 3}
	}
	eventually(t, "debounced cycle", func() bool { return h.handled.Load() == 2 })
	time.Sleep(100 * time.Millisecond)
	if got := h.handled.Load(); got != 2 {
		t.Errorf("handled: got %d, want 2 (one cycle per burst)", got)
	}
}

func TestObserver_MaxWaitDuringStorm(t *testing.T) {
	h := start(t, Config{DebounceWindow: 40 * time.Millisecond, DebounceMaxWait: 100 * time.Millisecond})
	eventually(t, "initial cycle", func() bool { return h.handled.Load() == 1 })

	stop := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(stop) {
		h.signals <- Signal{Kind: SignalMutation}
		time.Sleep(10 * time.Millisecond)
	}
	// The quiet window never elapses during the storm; max wait must
	// still produce cycles.
	if got := h.handled.Load(); got < 3 {
		t.Errorf("handled during storm: got %d, want >= 3", got)
	}
}

func TestObserver_AttachedReadsImmediately(t *testing.T) {
	h := start(t, Config{DebounceWindow: time.Hour, DebounceMaxWait: 2 * time.Hour})
	eventually(t, "initial cycle", func() bool { return h.handled.Load() == 1 })
	h.signals <- Signal{Kind: SignalAttached}
	eventually(t, "attached cycle", func() bool { return h.handled.Load() == 2 })
}

func TestObserver_NavigateSettles(t *testing.T) {
	h := start(t, Config{DebounceWindow: 10 * time.Millisecond, Settle: 80 * time.Millisecond})
	eventually(t, "initial cycle", func() bool { return h.handled.Load() == 1 })

	h.signals <- Signal{Kind: SignalNavigate, URL: "https://example.test/game/2"}
	// Mutations during the settle period extend it instead of cycling.
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		h.signals <- Signal{Kind: SignalMutation}
	}
	if got := h.handled.Load(); got != 1 {
		t.Fatalf("handled while settling: got %d, want 1", got)
	}
	eventually(t, "settled cycle", func() bool { return h.handled.Load() == 2 })
	eventually(t, "navigation url", func() bool { return h.obs.URL() == "https://example.test/game/2" })
}

func TestObserver_PollFallback(t *testing.T) {
	h := start(t, Config{PollInterval: 20 * time.Millisecond})
	eventually(t, "polled cycles", func() bool { return h.handled.Load() >= 3 })
}

func TestObserver_ReadErrorSkipsHandler(t *testing.T) {
	doc := &fakeDocument{}
	doc.fail.Store(true)
	var handled atomic.Int64
	obs := New(Config{
		Document:     doc,
		PollInterval: 10 * time.Millisecond,
		Handle:       func(context.Context, []byte) { handled.Add(1) },
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- obs.Run(ctx) }()

	eventually(t, "failed reads", func() bool { return obs.Errors() >= 2 })
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if handled.Load() != 0 || obs.Cycles() != 0 {
		t.Errorf("handled %d cycles %d, want 0", handled.Load(), obs.Cycles())
	}
}

func TestObserver_ClosedSignalsKeepPolling(t *testing.T) {
	h := start(t, Config{PollInterval: 20 * time.Millisecond})
	close(h.signals)
	eventually(t, "polled cycles after close", func() bool { return h.handled.Load() >= 3 })
}

func TestObserver_StopsOnCancel(t *testing.T) {
	h := start(t, Config{})
	eventually(t, "initial cycle", func() bool { return h.handled.Load() == 1 })
	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run: got %v, want nil", err)
		}
		h.done <- nil
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseSignal(t *testing.T) {
	sig, err := parseSignal(`{"kind":"navigate","url":"https://example.test/g/1"}`)
	if err != nil || sig.Kind != SignalNavigate || sig.URL != "https://example.test/g/1" {
		t.Errorf("navigate: got %+v, %v", sig, err)
	}
	if _, err := parseSignal(`{"kind":"bogus"}`); err == nil {
		t.Error("unknown kind: want error")
	}
	if _, err := parseSignal(`not json`); err == nil {
		t.Error("malformed: want error")
	}
}

func TestInjectScript(t *testing.T) {
	s := injectScript(`wc-chess-board, .board[data-x="1"]`)
	if !strings.HasPrefix(s, `window.__boardcast_selector = "wc-chess-board, .board[data-x=\"1\"]";`) {
		t.Errorf("prefix: %q", s[:80])
	}
	if !strings.Contains(s, bindingName) {
		t.Error("script does not call the binding")
	}
}

func TestObserver_DocumentLost(t *testing.T) {
	doc := &fakeDocument{}
	doc.fail.Store(true)
	obs := New(Config{Document: doc, PollInterval: 10 * time.Millisecond, MaxErrors: 3})
	done := make(chan error, 1)
	go func() { done <- obs.Run(context.Background()) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrDocumentLost) {
			t.Errorf("Run: got %v, want ErrDocumentLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not give up on a lost document")
	}
	if obs.Errors() != 3 {
		t.Errorf("Errors: got %d, want 3", obs.Errors())
	}
}
