// Package hub holds the most recent GameSnapshot and fans it out to any
// number of subscribers with last-value-wins semantics.
//
// Each subscriber owns a single-slot mailbox. Publish overwrites the slot
// and never waits for the reader: a slow subscriber skips intermediate
// values (counted as drops) but never sees them out of order. A new
// subscriber immediately receives the current value, if any.
package hub

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/hazyhaar/boardcast/idgen"
	"github.com/hazyhaar/boardcast/snapshot"
)

// ErrClosed is returned by Next after the subscription (or the hub) is
// closed, and by Publish after the hub is closed.
var ErrClosed = errors.New("hub: closed")

// Update is one published value and its hub-wide sequence number.
// Sequence numbers start at 1 and strictly increase.
type Update struct {
	Seq      uint64
	Snapshot snapshot.GameSnapshot
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Published   uint64 `json:"published"`
	Subscribers int    `json:"subscribers"`
	Dropped     uint64 `json:"dropped"`
	CurrentSeq  uint64 `json:"current_seq"`
}

// Config configures a Hub.
type Config struct {
	Logger *slog.Logger
	// NewID generates subscriber IDs. Default: "sub_" + UUIDv7.
	NewID idgen.Generator
}

// Hub is a process-wide single-slot broadcast store. It is safe for
// concurrent use.
type Hub struct {
	logger *slog.Logger
	newID  idgen.Generator

	// mu serializes Publish and Subscribe so that slots are filled in
	// sequence order.
	mu      sync.Mutex
	current *Update
	subs    map[string]*Subscription
	seq     uint64
	dropped uint64
	closed  bool
}

// New creates an empty Hub.
func New(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = idgen.Prefixed("sub_", idgen.Default)
	}
	return &Hub{
		logger: cfg.Logger,
		newID:  cfg.NewID,
		subs:   make(map[string]*Subscription),
	}
}

// Publish replaces the current value and hands it to every subscriber.
// It never blocks on a subscriber. Receivers share the published value and
// must treat it as read-only.
func (h *Hub) Publish(s snapshot.GameSnapshot) (uint64, error) {
	s = snapshot.Canonical(s.Clone())

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	h.seq++
	u := Update{Seq: h.seq, Snapshot: s}
	h.current = &u
	for id, sub := range h.subs {
		delivered, dropped := sub.deliver(u)
		if !delivered {
			h.logger.Debug("hub: delivery to closed subscriber", "subscriber", id, "seq", u.Seq)
			continue
		}
		if dropped {
			h.dropped++
		}
	}
	return u.Seq, nil
}

// Current returns the most recent value, if one was ever published.
func (h *Hub) Current() (Update, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return Update{}, false
	}
	return *h.current, true
}

// Subscribe registers a subscriber. Its mailbox is preloaded with the
// current value. Subscribing to a closed hub returns a closed subscription.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:     h.newID(),
		hub:    h,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closed = true
		close(sub.done)
		return sub
	}
	if h.current != nil {
		sub.deliver(*h.current)
	}
	h.subs[sub.id] = sub
	h.logger.Debug("hub: subscriber joined", "subscriber", sub.id, "subscribers", len(h.subs))
	return sub
}

// Stats returns counters for the hub.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := Stats{Published: h.seq, Subscribers: len(h.subs), Dropped: h.dropped}
	if h.current != nil {
		st.CurrentSeq = h.current.Seq
	}
	return st
}

// Close closes every subscription and rejects further publishes. It is
// idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.shut()
	}
	h.logger.Info("hub: closed", "subscribers", len(subs))
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("hub: subscriber left", "subscriber", id, "subscribers", n)
}
