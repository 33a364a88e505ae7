// Package extract turns a rendered chess board page into a canonical
// snapshot.GameSnapshot.
//
// Extraction never fails. Each section of the page (board, highlights,
// panels, move list, ...) is read independently; a section that cannot be
// located, or that trips over malformed markup, leaves its fields empty and
// the rest of the snapshot is still produced.
package extract

import (
	"bytes"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/boardcast/snapshot"
)

// DefaultMoveListLimit is the number of most recent full moves kept.
const DefaultMoveListLimit = 12

// Extractor reads board pages. It holds no state between calls and is safe
// for concurrent use.
type Extractor struct {
	logger        *slog.Logger
	moveListLimit int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for degraded sections.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMoveListLimit bounds the move list to the n most recent full moves.
func WithMoveListLimit(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.moveListLimit = n
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger:        slog.Default(),
		moveListLimit: DefaultMoveListLimit,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractHTML parses a serialized page and extracts it. Unparsable input
// yields an empty-board snapshot.
func (e *Extractor) ExtractHTML(page []byte) snapshot.GameSnapshot {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		e.logger.Warn("extract: parse page", "error", err)
		doc = &html.Node{Type: html.DocumentNode}
	}
	return e.Extract(doc)
}

// HasBoard reports whether page holds an element matching boardSelector
// with at least one piece in it. Pages that render the board client-side
// fail this check on their static HTML.
func HasBoard(page []byte, boardSelector string) bool {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return false
	}
	for _, b := range queryAll(doc, boardSelector) {
		if query(b, pieceSel) != nil {
			return true
		}
	}
	return false
}

// Extract reads one snapshot from doc.
func (e *Extractor) Extract(doc *html.Node) snapshot.GameSnapshot {
	var r raw

	// Orientation first: every color-relative section resolves through it.
	e.section("orientation", func() { r.frame = resolveFrame(doc) })
	e.section("board", func() { r.board = some(readBoard(doc)) })
	e.section("highlights", func() { readHighlights(doc, &r) })
	e.section("arrows", func() { r.arrows = readArrows(doc) })
	e.section("players", func() { readPlayers(&r) })
	e.section("clocks", func() { readClocks(&r) })
	e.section("captured", func() { readCaptured(&r) })
	e.section("moves", func() { r.moves = readMoveList(doc, e.moveListLimit) })
	e.section("result", func() { r.result = readResult(doc, &r) })

	return r.build()
}

// section runs fn and turns a panic into a logged, empty section.
func (e *Extractor) section(name string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Warn("extract: section failed", "section", name, "panic", p)
		}
	}()
	fn()
}

// opt is a typed optional: a section that could not observe a value leaves
// ok false instead of a zero value that could be mistaken for data.
type opt[T any] struct {
	v  T
	ok bool
}

func some[T any](v T) opt[T] { return opt[T]{v: v, ok: true} }

// raw is the intermediate record filled section by section before the
// immutable snapshot is built.
type raw struct {
	frame frame

	board    opt[snapshot.Grid]
	lastMove opt[snapshot.Move]
	selected opt[string]
	turn     opt[snapshot.Color]
	result   opt[snapshot.Result]

	hints    []string
	marks    []snapshot.Mark
	arrows   []snapshot.Arrow
	players  snapshot.Players
	clocks   snapshot.Clocks
	captured snapshot.CapturedPieces
	moves    []snapshot.MoveEntry

	// highlighted holds candidate selection squares (not hints, not last
	// move, not user marks) in document order.
	highlighted []string
}

func (r *raw) build() snapshot.GameSnapshot {
	s := snapshot.GameSnapshot{
		Board:          snapshot.EncodeBoard(snapshot.Grid{}),
		Players:        r.players,
		Clocks:         r.clocks,
		Orientation:    r.frame.orientation,
		Arrows:         nonNil(r.arrows),
		MarkedSquares:  nonNil(r.marks),
		Hints:          nonNil(r.hints),
		CapturedPieces: r.captured,
		MoveList:       nonNil(r.moves),
	}
	if !s.Orientation.Valid() {
		s.Orientation = snapshot.White
	}
	if r.board.ok {
		s.Board = snapshot.EncodeBoard(r.board.v)
	}
	if r.lastMove.ok {
		m := r.lastMove.v
		s.LastMove = &m
	}
	if r.result.ok {
		s.GameResult = r.result.v
	}
	s.SelectedSquare = r.deriveSelected()
	s.Turn = r.deriveTurn()
	return snapshot.Canonical(s)
}

// deriveSelected picks the first highlighted square that is occupied and is
// not a hint destination. Hints are known before this runs, so a piece's
// own highlighted square is never mistaken for a move destination. This is
// an approximation: any other highlight with the same signature on an
// occupied square is reported as selected too.
func (r *raw) deriveSelected() string {
	if !r.board.ok {
		return ""
	}
	hints := make(map[string]bool, len(r.hints))
	for _, h := range r.hints {
		hints[h] = true
	}
	for _, sq := range r.highlighted {
		if hints[sq] {
			continue
		}
		if r.board.v.At(sq) != 0 {
			return sq
		}
	}
	return ""
}

// deriveTurn prefers the running clock, then move-list parity, then white.
func (r *raw) deriveTurn() snapshot.Color {
	if r.turn.ok {
		return r.turn.v
	}
	if n := len(r.moves); n > 0 {
		last := r.moves[n-1]
		if last.White != nil && last.Black == nil {
			return snapshot.Black
		}
	}
	return snapshot.White
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
