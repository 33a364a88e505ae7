// Package analysis derives engine positions from snapshots and runs a
// single external engine on the most recent one.
package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/hazyhaar/boardcast/snapshot"
)

// ErrBadPosition is returned when a snapshot does not describe a position
// the engine can load.
var ErrBadPosition = errors.New("analysis: bad position")

// Position builds a full FEN for s: board, side to move, castling rights
// inferred from kings and rooks on their home squares, no en passant
// square, a zero halfmove clock and the full-move number of the move list.
// The result is checked by loading it into a chess game.
func Position(s snapshot.GameSnapshot) (string, error) {
	g, err := snapshot.DecodeBoard(s.Board)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	side := "w"
	if s.Turn == snapshot.Black {
		side = "b"
	}
	fen := fmt.Sprintf("%s %s %s - 0 %d", snapshot.EncodeBoard(g), side, castling(&g), fullMove(s))
	if _, err := chess.FEN(fen); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return fen, nil
}

func castling(g *snapshot.Grid) string {
	var sb strings.Builder
	if g.At("e1") == 'K' {
		if g.At("h1") == 'R' {
			sb.WriteByte('K')
		}
		if g.At("a1") == 'R' {
			sb.WriteByte('Q')
		}
	}
	if g.At("e8") == 'k' {
		if g.At("h8") == 'r' {
			sb.WriteByte('k')
		}
		if g.At("a8") == 'r' {
			sb.WriteByte('q')
		}
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}

// fullMove is the number of the move about to be played.
func fullMove(s snapshot.GameSnapshot) int {
	n := len(s.MoveList)
	if n == 0 {
		return 1
	}
	last := s.MoveList[n-1]
	if last.Number <= 0 {
		return 1
	}
	if last.Black != nil {
		return last.Number + 1
	}
	return last.Number
}
