package hub

import (
	"context"
	"sync"
)

// Subscription is one subscriber's mailbox. Next must be called from a
// single goroutine; Close may be called from any.
type Subscription struct {
	id  string
	hub *Hub

	mu     sync.Mutex
	slot   *Update // nil once consumed
	drops  uint64
	closed bool

	// notify has capacity 1: a pending wake-up is never duplicated.
	notify chan struct{}
	done   chan struct{}
}

// ID returns the subscriber ID.
func (s *Subscription) ID() string { return s.id }

// Dropped returns how many values were overwritten before this subscriber
// read them.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// deliver overwrites the slot. It reports whether the subscription was
// still open and whether an unread value was dropped.
func (s *Subscription) deliver(u Update) (delivered, dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	if s.slot != nil {
		s.drops++
		dropped = true
	}
	s.slot = &u
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true, dropped
}

// Next blocks until a value newer than the last one returned is available,
// ctx is done, or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (Update, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Update{}, ErrClosed
		}
		if s.slot != nil {
			u := *s.slot
			s.slot = nil
			s.mu.Unlock()
			return u, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Update{}, ctx.Err()
		case <-s.done:
		case <-s.notify:
		}
	}
}

// Close unregisters the subscription and wakes a pending Next. It is
// idempotent.
func (s *Subscription) Close() {
	if s.shut() {
		s.hub.remove(s.id)
	}
}

// shut marks the subscription closed; it reports whether this call did it.
func (s *Subscription) shut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.slot = nil
	close(s.done)
	return true
}
