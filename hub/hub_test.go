package hub

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

func newTestHub() *Hub {
	return New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func board(n int) snapshot.GameSnapshot {
	var g snapshot.Grid
	g.Put(snapshot.SquareName(n%8, (n/8)%8), 'K')
	return snapshot.GameSnapshot{Board: snapshot.EncodeBoard(g), Turn: snapshot.White, Orientation: snapshot.White}
}

func next(t *testing.T, sub *Subscription) Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	u, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return u
}

func TestPublish_NoSubscribers(t *testing.T) {
	h := newTestHub()
	if _, ok := h.Current(); ok {
		t.Fatal("Current on empty hub: got a value")
	}
	seq, err := h.Publish(board(1))
	if err != nil || seq != 1 {
		t.Fatalf("Publish: got %d, %v", seq, err)
	}
	u, ok := h.Current()
	if !ok || u.Seq != 1 || u.Snapshot.Board != board(1).Board {
		t.Errorf("Current: got %+v, %v", u, ok)
	}
}

func TestSubscribe_ReplaysCurrent(t *testing.T) {
	h := newTestHub()
	h.Publish(board(1))
	h.Publish(board(2))

	sub := h.Subscribe()
	defer sub.Close()
	u := next(t, sub)
	if u.Seq != 2 || u.Snapshot.Board != board(2).Board {
		t.Errorf("replay: got seq %d board %q", u.Seq, u.Snapshot.Board)
	}
	if sub.Dropped() != 0 {
		t.Errorf("Dropped: got %d, want 0", sub.Dropped())
	}
}

func TestSubscribe_EmptyHubWaits(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next on empty hub: got %v, want deadline exceeded", err)
	}

	h.Publish(board(3))
	if u := next(t, sub); u.Seq != 1 {
		t.Errorf("Next after publish: got seq %d, want 1", u.Seq)
	}
}

func TestNext_LastValueWins(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()
	defer sub.Close()

	for i := 1; i <= 3; i++ {
		h.Publish(board(i))
	}
	u := next(t, sub)
	if u.Seq != 3 || u.Snapshot.Board != board(3).Board {
		t.Errorf("Next: got seq %d, want 3", u.Seq)
	}
	if sub.Dropped() != 2 {
		t.Errorf("Dropped: got %d, want 2", sub.Dropped())
	}
	if st := h.Stats(); st.Dropped != 2 || st.Published != 3 || st.Subscribers != 1 {
		t.Errorf("Stats: got %+v", st)
	}
}

func TestPublish_ConcurrentOrdering(t *testing.T) {
	const (
		publishers = 8
		perPub     = 200
		readers    = 4
		total      = publishers * perPub
	)
	h := newTestHub()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	subs := make([]*Subscription, readers)
	for i := range subs {
		subs[i] = h.Subscribe()
	}

	errs := make(chan error, readers)
	var rwg sync.WaitGroup
	for _, sub := range subs {
		rwg.Add(1)
		go func(sub *Subscription) {
			defer rwg.Done()
			var last uint64
			for {
				u, err := sub.Next(ctx)
				if err != nil {
					errs <- err
					return
				}
				if u.Seq <= last {
					errs <- errors.New("sequence went backwards")
					return
				}
				last = u.Seq
				if last == total {
					return
				}
			}
		}(sub)
	}

	var pwg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perPub; i++ {
				if _, err := h.Publish(board(p*perPub + i)); err != nil {
					t.Errorf("Publish: %v", err)
					return
				}
			}
		}(p)
	}
	pwg.Wait()
	rwg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("reader: %v", err)
	}

	u, _ := h.Current()
	if u.Seq != total {
		t.Errorf("Current seq: got %d, want %d", u.Seq, total)
	}
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		done <- err
	}()

	sub.Close()
	sub.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Next after Close: got %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake Next")
	}

	if st := h.Stats(); st.Subscribers != 0 {
		t.Errorf("Subscribers after Close: got %d", st.Subscribers)
	}
	if _, err := h.Publish(board(1)); err != nil {
		t.Errorf("Publish after subscriber closed: %v", err)
	}
}

func TestHub_Close(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe()
	h.Close()
	h.Close()

	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Next: got %v, want ErrClosed", err)
	}
	if _, err := h.Publish(board(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish: got %v, want ErrClosed", err)
	}
	late := h.Subscribe()
	if _, err := late.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("late Next: got %v, want ErrClosed", err)
	}
	late.Close()
}

func TestPublish_StoresCopy(t *testing.T) {
	h := newTestHub()
	s := board(1)
	s.Hints = []string{"e4"}
	h.Publish(s)
	s.Hints[0] = "d4"

	u, _ := h.Current()
	if u.Snapshot.Hints[0] != "e4" {
		t.Errorf("published value changed through caller's slice: %v", u.Snapshot.Hints)
	}
}
