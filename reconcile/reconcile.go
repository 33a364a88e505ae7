// Package reconcile turns two successive snapshots into the minimal set of
// visual transitions a renderer has to play: piece slides, placements and
// removals, highlight changes, arrows, the result banner and the knight
// capture flag.
//
// Reconcile is a pure function. Renderers keep the returned Rendered value
// and pass it back on the next call; after a reconnect they pass nil and
// everything is placed fresh.
package reconcile

import (
	"slices"

	"github.com/hazyhaar/boardcast/snapshot"
)

// Rendered is what a renderer currently shows.
type Rendered struct {
	Snapshot snapshot.GameSnapshot `json:"snapshot"`
	// KnightCapture is the square flagged by the last knight capture, or
	// empty. The flag lives until the next board change.
	KnightCapture string `json:"knightCapture,omitempty"`
}

// Reconcile computes the transitions from prev to next. Ops come in play
// order: knight flag cleared, pieces removed, pieces moved, pieces placed,
// knight flag set, highlights cleared then set, arrows, result.
func Reconcile(prev *Rendered, next snapshot.GameSnapshot) ([]Op, Rendered) {
	next = snapshot.Canonical(next)
	out := Rendered{Snapshot: next}

	if prev == nil {
		var ops []Op
		g := grid(next.Board)
		g.Squares(func(sq string, p byte) {
			ops = append(ops, placePiece(p, sq))
		})
		ops = diffHighlights(ops, snapshot.GameSnapshot{}, next)
		ops = append(ops, Op{Kind: KindSetArrows, Arrows: next.Arrows})
		if next.GameResult != "" {
			ops = append(ops, Op{Kind: KindShowResult, Result: next.GameResult})
		}
		return ops, out
	}

	var ops []Op
	before := prev.Snapshot
	if before.Board != next.Board {
		if prev.KnightCapture != "" {
			ops = append(ops, Op{Kind: KindClearKnightCapture, Square: prev.KnightCapture})
		}
		var flag string
		ops, flag = diffBoard(ops, before.Board, next)
		if flag != "" {
			ops = append(ops, Op{Kind: KindFlagKnightCapture, Square: flag})
		}
		out.KnightCapture = flag
	} else {
		out.KnightCapture = prev.KnightCapture
	}

	ops = diffHighlights(ops, before, next)
	if !slices.Equal(before.Arrows, next.Arrows) {
		ops = append(ops, Op{Kind: KindSetArrows, Arrows: next.Arrows})
	}
	switch {
	case next.GameResult == "" && before.GameResult != "":
		ops = append(ops, Op{Kind: KindHideResult})
	case next.GameResult != "" && next.GameResult != before.GameResult:
		ops = append(ops, Op{Kind: KindShowResult, Result: next.GameResult})
	}
	return ops, out
}

// grid decodes a board; anything undecodable renders as empty.
func grid(board string) snapshot.Grid {
	g, err := snapshot.DecodeBoard(board)
	if err != nil {
		return snapshot.Grid{}
	}
	return g
}

type slide struct {
	piece    byte
	from, to string
	promoted bool
}

// diffBoard appends piece ops for the board change and returns the square
// to flag for a knight capture, if any.
func diffBoard(ops []Op, prevBoard string, next snapshot.GameSnapshot) ([]Op, string) {
	before, after := grid(prevBoard), grid(next.Board)

	var removed, added []string
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := snapshot.SquareName(col, 7-row)
			b, a := before.At(sq), after.At(sq)
			if b == a {
				continue
			}
			if b != 0 {
				removed = append(removed, sq)
			}
			if a != 0 {
				added = append(added, sq)
			}
		}
	}
	gone, arrived := toSet(removed), toSet(added)

	var slides []slide
	dests := map[string]bool{}

	// Primary slide: the reported last move, when the pieces agree.
	if lm := next.LastMove; lm != nil && gone[lm.From] && arrived[lm.To] {
		p, q := before.At(lm.From), after.At(lm.To)
		if p == q || isPromotion(p, q) {
			slides = append(slides, slide{piece: p, from: lm.From, to: lm.To, promoted: p != q})
			delete(gone, lm.From)
			delete(arrived, lm.To)
			dests[lm.To] = true
		}
	}

	// Secondary slides (the castling rook): only one-to-one per piece code.
	from, to := map[byte][]string{}, map[byte][]string{}
	var order []byte
	for _, sq := range removed {
		if !gone[sq] || dests[sq] {
			continue
		}
		p := before.At(sq)
		if from[p] == nil {
			order = append(order, p)
		}
		from[p] = append(from[p], sq)
	}
	for _, sq := range added {
		if arrived[sq] {
			to[after.At(sq)] = append(to[after.At(sq)], sq)
		}
	}
	for _, p := range order {
		if len(from[p]) != 1 || len(to[p]) != 1 {
			continue
		}
		f, t := from[p][0], to[p][0]
		slides = append(slides, slide{piece: p, from: f, to: t})
		delete(gone, f)
		delete(arrived, t)
		dests[t] = true
	}

	var mover snapshot.Color
	if len(slides) > 0 {
		mover = snapshot.PieceColor(slides[0].piece)
	}
	for _, sq := range removed {
		if !gone[sq] {
			continue
		}
		p := before.At(sq)
		captured := dests[sq] || (mover != "" && snapshot.PieceColor(p) != mover)
		ops = append(ops, removePiece(p, sq, captured))
	}

	var flag string
	for _, s := range slides {
		ops = append(ops, movePiece(s.piece, s.from, s.to, s.promoted))
		if flag == "" && before.At(s.to) != 0 && snapshot.PieceKind(after.At(s.to)) == 'n' {
			flag = s.to
		}
	}
	for _, sq := range added {
		if arrived[sq] {
			ops = append(ops, placePiece(after.At(sq), sq))
		}
	}
	return ops, flag
}

// isPromotion reports whether pawn p can have become q.
func isPromotion(p, q byte) bool {
	if snapshot.PieceKind(p) != 'p' || snapshot.PieceColor(p) != snapshot.PieceColor(q) {
		return false
	}
	switch snapshot.PieceKind(q) {
	case 'n', 'b', 'r', 'q':
		return true
	}
	return false
}

func toSet(squares []string) map[string]bool {
	m := make(map[string]bool, len(squares))
	for _, sq := range squares {
		m[sq] = true
	}
	return m
}

type layer struct {
	kind    Highlight
	squares []string
	colors  map[string]string
}

func layers(s snapshot.GameSnapshot) []layer {
	var lm, sel []string
	if s.LastMove != nil {
		lm = []string{s.LastMove.From, s.LastMove.To}
	}
	if s.SelectedSquare != "" {
		sel = []string{s.SelectedSquare}
	}
	marks := layer{kind: HighlightMark, colors: map[string]string{}}
	for _, m := range s.MarkedSquares {
		marks.squares = append(marks.squares, m.Square)
		marks.colors[m.Square] = m.Color
	}
	return []layer{
		{kind: HighlightLastMove, squares: lm},
		{kind: HighlightSelected, squares: sel},
		{kind: HighlightHint, squares: s.Hints},
		marks,
	}
}

// diffHighlights replaces each highlight layer as a set: squares that left
// a layer are cleared, squares that joined it (or changed color) are set.
func diffHighlights(ops []Op, prev, next snapshot.GameSnapshot) []Op {
	pl, nl := layers(prev), layers(next)
	for i := range nl {
		keep := toSet(nl[i].squares)
		for _, sq := range pl[i].squares {
			if !keep[sq] {
				ops = append(ops, clearHighlight(sq, pl[i].kind))
				keep[sq] = true // cleared once even if listed twice
			}
		}
	}
	for i := range nl {
		had := toSet(pl[i].squares)
		done := map[string]bool{}
		for _, sq := range nl[i].squares {
			if done[sq] {
				continue
			}
			done[sq] = true
			color := nl[i].colors[sq]
			if had[sq] && pl[i].colors[sq] == color {
				continue
			}
			ops = append(ops, setHighlight(sq, nl[i].kind, color))
		}
	}
	return ops
}
