package snapshot

import "fmt"

// SquareName returns the algebraic name for zero-based file and rank.
// It returns "" when either coordinate is out of range.
func SquareName(file, rank int) string {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return ""
	}
	return string([]byte{byte('a' + file), byte('1' + rank)})
}

// ParseSquare splits an algebraic square into zero-based file and rank.
func ParseSquare(s string) (file, rank int, err error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, 0, fmt.Errorf("snapshot: bad square %q", s)
	}
	return int(s[0] - 'a'), int(s[1] - '1'), nil
}

// ValidSquare reports whether s is an algebraic square.
func ValidSquare(s string) bool {
	_, _, err := ParseSquare(s)
	return err == nil
}

// VisualCoords returns the on-screen column (left to right) and row (top to
// bottom) of square when orientation is rendered at the bottom.
func VisualCoords(square string, orientation Color) (col, row int, ok bool) {
	file, rank, err := ParseSquare(square)
	if err != nil {
		return 0, 0, false
	}
	if orientation == Black {
		return 7 - file, rank, true
	}
	return file, 7 - rank, true
}

// SquareAtVisual is the inverse of VisualCoords.
func SquareAtVisual(col, row int, orientation Color) string {
	if orientation == Black {
		return SquareName(7-col, row)
	}
	return SquareName(col, 7-row)
}
