package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StartingBoard is the canonical initial placement in extended grid notation.
const StartingBoard = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

// ErrBadBoard is wrapped by every board decoding error.
var ErrBadBoard = errors.New("snapshot: bad board")

// Grid is an 8x8 placement. Row 0 is rank 8, column 0 is file a. A zero byte
// is an empty square; otherwise the byte is a piece letter, uppercase for
// white and lowercase for black.
type Grid [8][8]byte

// At returns the piece on square, or 0 when empty or square is invalid.
func (g *Grid) At(square string) byte {
	file, rank, err := ParseSquare(square)
	if err != nil {
		return 0
	}
	return g[7-rank][file]
}

// Put places piece on square (0 clears it). Invalid squares are ignored.
func (g *Grid) Put(square string, piece byte) {
	file, rank, err := ParseSquare(square)
	if err != nil {
		return
	}
	g[7-rank][file] = piece
}

// Squares calls fn for every occupied square, rank 8 to 1, file a to h.
func (g *Grid) Squares(fn func(square string, piece byte)) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			if p := g[row][col]; p != 0 {
				fn(SquareName(col, 7-row), p)
			}
		}
	}
}

// EncodeBoard serializes g rank 8 to rank 1 with run-length empty counts.
func EncodeBoard(g Grid) string {
	var sb strings.Builder
	sb.Grow(71)
	for row := 0; row < 8; row++ {
		if row > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for col := 0; col < 8; col++ {
			p := g[row][col]
			if p == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
	}
	return sb.String()
}

// DecodeBoard parses extended grid notation. Anything after the first space
// (side to move, castling, ...) is ignored so full FEN strings decode too.
func DecodeBoard(s string) (Grid, error) {
	var g Grid
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	ranks := strings.Split(s, "/")
	if len(ranks) != 8 {
		return g, fmt.Errorf("%w: %d ranks", ErrBadBoard, len(ranks))
	}
	for row, rank := range ranks {
		if err := decodeRank(rank, &g[row]); err != nil {
			return g, fmt.Errorf("%w: rank %d: %v", ErrBadBoard, 8-row, err)
		}
	}
	return g, nil
}

func decodeRank(rank string, out *[8]byte) error {
	col := 0
	for i := 0; i < len(rank); i++ {
		c := rank[i]
		switch {
		case c >= '1' && c <= '8':
			col += int(c - '0')
		case IsPiece(c):
			if col < 8 {
				out[col] = c
			}
			col++
		default:
			return fmt.Errorf("unexpected %q", c)
		}
		if col > 8 {
			return errors.New("more than 8 files")
		}
	}
	if col != 8 {
		return errors.New("files sum to " + strconv.Itoa(col))
	}
	return nil
}

// ValidBoard reports whether s is well-formed extended grid notation.
func ValidBoard(s string) bool {
	_, err := DecodeBoard(s)
	return err == nil
}

// SanitizeBoard repairs s so it always decodes. A rank that does not expand
// to eight files becomes an empty rank; a board without exactly eight ranks
// becomes the starting position. The second return value lists what was
// repaired and is nil when s was already valid.
func SanitizeBoard(s string) (string, []error) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	ranks := strings.Split(s, "/")
	if len(ranks) != 8 {
		return StartingBoard, []error{fmt.Errorf("%w: %d ranks", ErrBadBoard, len(ranks))}
	}
	var problems []error
	for row, rank := range ranks {
		var scratch [8]byte
		if err := decodeRank(rank, &scratch); err != nil {
			problems = append(problems, fmt.Errorf("%w: rank %d: %v", ErrBadBoard, 8-row, err))
			ranks[row] = "8"
		}
	}
	return strings.Join(ranks, "/"), problems
}

// IsPiece reports whether c is one of the twelve piece letters.
func IsPiece(c byte) bool {
	switch c {
	case 'P', 'N', 'B', 'R', 'Q', 'K', 'p', 'n', 'b', 'r', 'q', 'k':
		return true
	}
	return false
}

// PieceColor returns the side a piece letter belongs to.
func PieceColor(p byte) Color {
	if p >= 'A' && p <= 'Z' {
		return White
	}
	return Black
}

// PieceKind returns the lowercase piece letter regardless of color.
func PieceKind(p byte) byte {
	if p >= 'A' && p <= 'Z' {
		return p + ('a' - 'A')
	}
	return p
}

// PieceCode returns the two-letter code used for captured pieces ("wp", "bq").
func PieceCode(p byte) string {
	if !IsPiece(p) {
		return ""
	}
	prefix := "b"
	if PieceColor(p) == White {
		prefix = "w"
	}
	return prefix + string(PieceKind(p))
}
