package reconcile

import (
	"github.com/hazyhaar/boardcast/snapshot"
)

// Kind names a visual transition.
type Kind string

const (
	KindMovePiece          Kind = "move_piece"
	KindPlacePiece         Kind = "place_piece"
	KindRemovePiece        Kind = "remove_piece"
	KindSetHighlight       Kind = "set_highlight"
	KindClearHighlight     Kind = "clear_highlight"
	KindSetArrows          Kind = "set_arrows"
	KindShowResult         Kind = "show_result"
	KindHideResult         Kind = "hide_result"
	KindFlagKnightCapture  Kind = "flag_knight_capture"
	KindClearKnightCapture Kind = "clear_knight_capture"
)

// Highlight is a square highlight layer.
type Highlight string

const (
	HighlightLastMove Highlight = "last_move"
	HighlightSelected Highlight = "selected"
	HighlightHint     Highlight = "hint"
	HighlightMark     Highlight = "mark"
)

// Op is one visual transition. Only the fields relevant to Kind are set.
//
// Piece IDs are positional ("wn@f3"): they name the piece by code and the
// square it stood on before the transition (after it, for PlacePiece).
type Op struct {
	Kind      Kind             `json:"op"`
	ID        string           `json:"id,omitempty"`
	Square    string           `json:"square,omitempty"`
	From      string           `json:"from,omitempty"`
	To        string           `json:"to,omitempty"`
	Promoted  bool             `json:"promoted,omitempty"`
	Captured  bool             `json:"captured,omitempty"`
	Highlight Highlight        `json:"highlight,omitempty"`
	Color     string           `json:"color,omitempty"`
	Arrows    []snapshot.Arrow `json:"arrows,omitempty"`
	Result    snapshot.Result  `json:"result,omitempty"`
}

// PieceID returns the positional ID of piece p on square.
func PieceID(p byte, square string) string {
	return snapshot.PieceCode(p) + "@" + square
}

func movePiece(p byte, from, to string, promoted bool) Op {
	return Op{Kind: KindMovePiece, ID: PieceID(p, from), From: from, To: to, Promoted: promoted}
}

func placePiece(p byte, square string) Op {
	return Op{Kind: KindPlacePiece, ID: PieceID(p, square), Square: square}
}

func removePiece(p byte, square string, captured bool) Op {
	return Op{Kind: KindRemovePiece, ID: PieceID(p, square), Square: square, Captured: captured}
}

func setHighlight(square string, h Highlight, color string) Op {
	return Op{Kind: KindSetHighlight, Square: square, Highlight: h, Color: color}
}

func clearHighlight(square string, h Highlight) Op {
	return Op{Kind: KindClearHighlight, Square: square, Highlight: h}
}
