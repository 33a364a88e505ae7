package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/hazyhaar/boardcast/hub"
	"github.com/hazyhaar/boardcast/relay"
	"github.com/hazyhaar/boardcast/snapshot"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
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

func board(b string) snapshot.GameSnapshot {
	return snapshot.GameSnapshot{Board: b, Turn: snapshot.White, Orientation: snapshot.White}
}

func startRelay(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	h := hub.New(hub.Config{Logger: quiet})
	srv := httptest.NewServer(relay.New(relay.Config{}, h, relay.WithLogger(quiet)).Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return srv, h
}

func TestPublisher_ReachesRelay(t *testing.T) {
	srv, h := startRelay(t)
	p := NewPublisher(PublisherConfig{URL: wsURL(srv, "/ws/producer"), Reconnect: 10 * time.Millisecond, Logger: quiet})
	defer p.Close()

	if err := p.Publish(context.Background(), board(snapshot.StartingBoard)); err != nil {
		t.Fatal(err)
	}
	eventually(t, "relay publication", func() bool {
		u, ok := h.Current()
		return ok && u.Snapshot.Board == snapshot.StartingBoard
	})
	if !p.Connected() {
		t.Error("Connected: got false")
	}
}

func TestPublisher_QueuesWhileRelayDown(t *testing.T) {
	h := hub.New(hub.Config{Logger: quiet})
	defer h.Close()
	handler := relay.New(relay.Config{}, h, relay.WithLogger(quiet)).Handler()

	// Reserve an address, publish while nothing listens on it, then start
	// the relay there.
	srv := httptest.NewUnstartedServer(handler)
	p := NewPublisher(PublisherConfig{URL: "ws://" + srv.Listener.Addr().String() + "/ws/producer", Reconnect: 10 * time.Millisecond, Logger: quiet})
	defer p.Close()

	p.Publish(context.Background(), board(snapshot.StartingBoard))
	next := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR"
	p.Publish(context.Background(), board(next))

	srv.Start()
	defer srv.Close()
	eventually(t, "latest snapshot after reconnect", func() bool {
		u, ok := h.Current()
		return ok && u.Snapshot.Board == next
	})
	if st := h.Stats(); st.Published != 1 {
		t.Errorf("published: got %d, want only the latest", st.Published)
	}
}

func TestPublisher_ResendsLatestAfterReconnect(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
		got   []string
	)
	// Accept, read one message, hang up.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusGoingAway, "bye")
		mu.Lock()
		conns++
		mu.Unlock()
		_, data, err := c.Read(r.Context())
		if err != nil {
			return
		}
		s, _ := snapshot.Unmarshal(data)
		mu.Lock()
		got = append(got, s.Board)
		mu.Unlock()
	}))
	defer srv.Close()

	p := NewPublisher(PublisherConfig{URL: wsURL(srv, "/"), Reconnect: 10 * time.Millisecond, Logger: quiet})
	defer p.Close()
	p.Publish(context.Background(), board(snapshot.StartingBoard))

	eventually(t, "second delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	})
	mu.Lock()
	defer mu.Unlock()
	if got[0] != snapshot.StartingBoard || got[1] != snapshot.StartingBoard {
		t.Errorf("deliveries: got %q", got)
	}
	if conns < 2 {
		t.Errorf("connections: got %d, want >= 2", conns)
	}
}

func TestPublisher_Close(t *testing.T) {
	p := NewPublisher(PublisherConfig{URL: "ws://127.0.0.1:1/ws/producer", Reconnect: time.Hour, Logger: quiet})
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked")
	}
	if err := p.Publish(context.Background(), board(snapshot.StartingBoard)); err != ErrPublisherClosed {
		t.Errorf("Publish after Close: got %v, want ErrPublisherClosed", err)
	}
}

func TestSubscriber_ReplayAndUpdates(t *testing.T) {
	srv, h := startRelay(t)
	h.Publish(board(snapshot.StartingBoard))

	var (
		mu       sync.Mutex
		connects int
		boards   []string
	)
	sub := NewSubscriber(SubscriberConfig{
		URL:       wsURL(srv, "/ws"),
		Reconnect: 10 * time.Millisecond,
		Logger:    quiet,
		OnConnect: func() {
			mu.Lock()
			connects++
			mu.Unlock()
		},
		OnSnapshot: func(s snapshot.GameSnapshot) {
			mu.Lock()
			boards = append(boards, s.Board)
			mu.Unlock()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	eventually(t, "replay", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(boards) == 1
	})
	next := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR"
	h.Publish(board(next))
	eventually(t, "update", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(boards) == 2 && boards[1] == next
	})

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: got %v, want nil", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if connects != 1 || boards[0] != snapshot.StartingBoard {
		t.Errorf("got connects %d boards %q", connects, boards)
	}
}

func TestSubscriber_ReconnectsAndResets(t *testing.T) {
	srv, h := startRelay(t)

	var (
		mu       sync.Mutex
		connects int
	)
	sub := NewSubscriber(SubscriberConfig{
		URL:       wsURL(srv, "/ws"),
		Reconnect: 10 * time.Millisecond,
		Logger:    quiet,
		OnConnect: func() {
			mu.Lock()
			connects++
			mu.Unlock()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	eventually(t, "first connection", func() bool { return h.Stats().Subscribers == 1 })
	// A closed hub ends every relay subscription, forcing reconnects.
	h.Close()
	eventually(t, "reconnect", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return connects >= 2
	})
}

func TestSubscriber_SkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		c.Write(r.Context(), websocket.MessageText, []byte("{garbage"))
		data, _ := snapshot.Marshal(board(snapshot.StartingBoard))
		c.Write(r.Context(), websocket.MessageText, data)
		c.Read(r.Context())
	}))
	defer srv.Close()

	got := make(chan snapshot.GameSnapshot, 4)
	sub := NewSubscriber(SubscriberConfig{
		URL:        wsURL(srv, "/"),
		Logger:     quiet,
		OnSnapshot: func(s snapshot.GameSnapshot) { got <- s },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	select {
	case s := <-got:
		if s.Board != snapshot.StartingBoard || s.Arrows == nil {
			t.Errorf("snapshot: got %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}
