// Package filter decides which extracted snapshots are worth emitting.
//
// A Filter suppresses snapshots that serialize identically to the last
// emitted one, keeps the last move sticky across cycles that cannot observe
// it, and flags the first snapshot of a new game. It is synchronous and is
// meant to be driven by a single extraction loop; it is not safe for
// concurrent use.
package filter

import (
	"bytes"
	"errors"
	"log/slog"

	"github.com/hazyhaar/boardcast/snapshot"
)

// State is the cross-cycle memory of a Filter. The zero value is a fresh
// start: the first snapshot is always emitted.
type State struct {
	// LastSerialized is the canonical JSON of the last emitted snapshot.
	LastSerialized []byte
	// LastMove is the sticky last move.
	LastMove *snapshot.Move
	// LastBoard is the board seen in the previous cycle, emitted or not.
	LastBoard string
	// ResetBoard is the board a new game was detected on. Until the board
	// leaves it, moves still on screen are not adopted.
	ResetBoard string
}

// Filter applies change suppression to a stream of snapshots.
type Filter struct {
	st     State
	logger *slog.Logger
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for board invariant violations.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Filter resuming from st.
func New(st State, opts ...Option) *Filter {
	f := &Filter{st: st, logger: slog.Default()}
	if st.LastMove != nil {
		m := *st.LastMove
		f.st.LastMove = &m
	}
	f.st.LastSerialized = bytes.Clone(st.LastSerialized)
	for _, o := range opts {
		o(f)
	}
	return f
}

// State returns a copy of the filter's current state.
func (f *Filter) State() State {
	st := f.st
	st.LastSerialized = bytes.Clone(f.st.LastSerialized)
	if f.st.LastMove != nil {
		m := *f.st.LastMove
		st.LastMove = &m
	}
	return st
}

// Apply returns the snapshot to emit for raw, or false when it carries
// nothing new. raw is not modified.
func (f *Filter) Apply(raw snapshot.GameSnapshot) (snapshot.GameSnapshot, bool) {
	s := raw.Clone()

	board, problems := snapshot.SanitizeBoard(s.Board)
	if len(problems) > 0 {
		f.logger.Warn("filter: board invariant violated",
			"board", s.Board, "replacement", board, "error", errors.Join(problems...))
	}
	s.Board = board

	changed := board != f.st.LastBoard
	newGame := board == snapshot.StartingBoard && f.st.LastBoard != snapshot.StartingBoard
	f.st.LastBoard = board
	if changed {
		f.st.ResetBoard = ""
	}

	switch {
	case newGame:
		// Highlights still on screen belong to the previous game.
		f.st.LastMove = nil
		f.st.ResetBoard = board
	case s.LastMove != nil && (changed || (f.st.LastMove == nil && f.st.ResetBoard == "")):
		m := *s.LastMove
		f.st.LastMove = &m
	}
	s.LastMove = nil
	if f.st.LastMove != nil {
		m := *f.st.LastMove
		s.LastMove = &m
	}
	s.IsNewGame = newGame
	s = snapshot.Canonical(s)

	data, err := snapshot.Marshal(s)
	if err != nil {
		f.logger.Error("filter: marshal snapshot", "error", err)
		return snapshot.GameSnapshot{}, false
	}
	if bytes.Equal(data, f.st.LastSerialized) {
		return snapshot.GameSnapshot{}, false
	}
	f.st.LastSerialized = data
	if newGame {
		f.logger.Info("filter: new game detected")
	}
	return s, true
}
