package reconcile

import (
	"testing"

	"github.com/hazyhaar/boardcast/snapshot"
)

func position(board string, last *snapshot.Move) snapshot.GameSnapshot {
	return snapshot.GameSnapshot{Board: board, Turn: snapshot.White, Orientation: snapshot.White, LastMove: last}
}

func mv(from, to string) *snapshot.Move { return &snapshot.Move{From: from, To: to} }

func rendered(s snapshot.GameSnapshot) *Rendered {
	_, r := Reconcile(nil, s)
	return &r
}

func ofKind(ops []Op, k Kind) []Op {
	var out []Op
	for _, op := range ops {
		if op.Kind == k {
			out = append(out, op)
		}
	}
	return out
}

func pieceOps(ops []Op) []Op {
	var out []Op
	for _, op := range ops {
		switch op.Kind {
		case KindMovePiece, KindPlacePiece, KindRemovePiece:
			out = append(out, op)
		}
	}
	return out
}

func TestReconcile_FreshRender(t *testing.T) {
	s := position(snapshot.StartingBoard, nil)
	s.GameResult = snapshot.ResultDraw
	ops, r := Reconcile(nil, s)

	if got := len(ofKind(ops, KindPlacePiece)); got != 32 {
		t.Errorf("PlacePiece: got %d, want 32", got)
	}
	if got := len(ofKind(ops, KindMovePiece)); got != 0 {
		t.Errorf("MovePiece on fresh render: got %d", got)
	}
	if got := len(ofKind(ops, KindSetArrows)); got != 1 {
		t.Errorf("SetArrows: got %d, want 1", got)
	}
	if got := ofKind(ops, KindShowResult); len(got) != 1 || got[0].Result != snapshot.ResultDraw {
		t.Errorf("ShowResult: got %+v", got)
	}
	if r.Snapshot.Board != snapshot.StartingBoard || r.KnightCapture != "" {
		t.Errorf("Rendered: got %+v", r)
	}
}

func TestReconcile_SimpleMove(t *testing.T) {
	prev := rendered(position(snapshot.StartingBoard, nil))
	ops, _ := Reconcile(prev, position("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR", mv("e2", "e4")))

	pieces := pieceOps(ops)
	if len(pieces) != 1 {
		t.Fatalf("piece ops: got %+v, want one move", pieces)
	}
	want := Op{Kind: KindMovePiece, ID: "wp@e2", From: "e2", To: "e4"}
	if got := pieces[0]; got.Kind != want.Kind || got.ID != want.ID || got.From != want.From || got.To != want.To || got.Promoted {
		t.Errorf("move: got %+v, want %+v", got, want)
	}
	if got := ofKind(ops, KindSetHighlight); len(got) != 2 || got[0].Square != "e2" || got[1].Square != "e4" || got[0].Highlight != HighlightLastMove {
		t.Errorf("last-move highlights: got %+v", got)
	}
	if got := ofKind(ops, KindSetArrows); len(got) != 0 {
		t.Errorf("SetArrows without arrow change: got %+v", got)
	}
}

func TestReconcile_KnightCapture(t *testing.T) {
	prev := rendered(position("4k3/8/8/4p3/8/5N2/8/4K3", nil))
	ops, r := Reconcile(prev, position("4k3/8/8/4N3/8/8/8/4K3", mv("f3", "e5")))

	moves := ofKind(ops, KindMovePiece)
	if len(moves) != 1 || moves[0].ID != "wn@f3" || moves[0].To != "e5" {
		t.Fatalf("MovePiece: got %+v, want one wn@f3 -> e5", moves)
	}
	flags := ofKind(ops, KindFlagKnightCapture)
	if len(flags) != 1 || flags[0].Square != "e5" {
		t.Fatalf("FlagKnightCapture: got %+v, want one on e5", flags)
	}
	removes := ofKind(ops, KindRemovePiece)
	if len(removes) != 1 || removes[0].ID != "bp@e5" || !removes[0].Captured {
		t.Errorf("RemovePiece: got %+v", removes)
	}
	if len(ofKind(ops, KindPlacePiece)) != 0 {
		t.Errorf("unexpected PlacePiece in %+v", ops)
	}
	if r.KnightCapture != "e5" {
		t.Errorf("KnightCapture: got %q, want e5", r.KnightCapture)
	}

	// A highlight-only update keeps the flag.
	same := r.Snapshot.Clone()
	same.Hints = []string{"d3"}
	ops, r2 := Reconcile(&r, same)
	if len(ofKind(ops, KindClearKnightCapture)) != 0 || r2.KnightCapture != "e5" {
		t.Errorf("flag cleared without a board change: %+v", ops)
	}

	// The next board change clears it first.
	ops, r3 := Reconcile(&r2, position("3k4/8/8/4N3/8/8/8/4K3", mv("e8", "d8")))
	if len(ops) == 0 || ops[0].Kind != KindClearKnightCapture || ops[0].Square != "e5" {
		t.Errorf("first op: got %+v, want ClearKnightCapture e5", ops)
	}
	if len(ofKind(ops, KindFlagKnightCapture)) != 0 || r3.KnightCapture != "" {
		t.Errorf("flag survived: ops %+v, rendered %q", ops, r3.KnightCapture)
	}
}

func TestReconcile_NonKnightCaptureNotFlagged(t *testing.T) {
	prev := rendered(position("4k3/8/8/4p3/8/8/7B/4K3", nil))
	ops, r := Reconcile(prev, position("4k3/8/8/4B3/8/8/8/4K3", mv("h2", "e5")))
	if len(ofKind(ops, KindFlagKnightCapture)) != 0 || r.KnightCapture != "" {
		t.Errorf("bishop capture flagged: %+v", ops)
	}
}

func TestReconcile_Promotion(t *testing.T) {
	prev := rendered(position("8/4P3/8/8/8/8/8/4K2k", nil))
	ops, _ := Reconcile(prev, position("4Q3/8/8/8/8/8/8/4K2k", mv("e7", "e8")))

	pieces := pieceOps(ops)
	if len(pieces) != 1 {
		t.Fatalf("piece ops: got %+v, want one promoted move", pieces)
	}
	if p := pieces[0]; p.Kind != KindMovePiece || p.ID != "wp@e7" || p.To != "e8" || !p.Promoted {
		t.Errorf("promotion: got %+v", p)
	}
}

func TestReconcile_CastlingPairsRook(t *testing.T) {
	prev := rendered(position("4k3/8/8/8/8/8/8/4K2R", nil))
	ops, _ := Reconcile(prev, position("4k3/8/8/8/8/8/8/5RK1", mv("e1", "g1")))

	pieces := pieceOps(ops)
	if len(pieces) != 2 {
		t.Fatalf("piece ops: got %+v, want two moves", pieces)
	}
	if pieces[0].ID != "wk@e1" || pieces[0].To != "g1" {
		t.Errorf("king: got %+v", pieces[0])
	}
	if pieces[1].Kind != KindMovePiece || pieces[1].ID != "wr@h1" || pieces[1].To != "f1" {
		t.Errorf("rook: got %+v", pieces[1])
	}
}

func TestReconcile_AmbiguousIsRemoveAndPlace(t *testing.T) {
	prev := rendered(position("4k3/8/8/8/8/8/8/R6R", nil))
	ops, _ := Reconcile(prev, position("4k3/8/8/8/8/8/8/1R4R1", nil))

	if n := len(ofKind(ops, KindMovePiece)); n != 0 {
		t.Errorf("MovePiece for ambiguous change: got %d", n)
	}
	if n := len(ofKind(ops, KindRemovePiece)); n != 2 {
		t.Errorf("RemovePiece: got %d, want 2", n)
	}
	if n := len(ofKind(ops, KindPlacePiece)); n != 2 {
		t.Errorf("PlacePiece: got %d, want 2", n)
	}
}

func TestReconcile_UnreportedMoveStillSlides(t *testing.T) {
	prev := rendered(position("4k3/8/8/8/8/8/8/4K3", nil))
	ops, _ := Reconcile(prev, position("4k3/8/8/8/8/8/4K3/8", nil))
	pieces := pieceOps(ops)
	if len(pieces) != 1 || pieces[0].Kind != KindMovePiece || pieces[0].ID != "wk@e1" || pieces[0].To != "e2" {
		t.Errorf("piece ops: got %+v", pieces)
	}
}

func TestReconcile_EnPassant(t *testing.T) {
	prev := rendered(position("4k3/8/8/3Pp3/8/8/8/4K3", nil))
	ops, _ := Reconcile(prev, position("4k3/8/4P3/8/8/8/8/4K3", mv("d5", "e6")))

	removes := ofKind(ops, KindRemovePiece)
	if len(removes) != 1 || removes[0].ID != "bp@e5" || !removes[0].Captured {
		t.Errorf("RemovePiece: got %+v", removes)
	}
	moves := ofKind(ops, KindMovePiece)
	if len(moves) != 1 || moves[0].ID != "wp@d5" || moves[0].To != "e6" {
		t.Errorf("MovePiece: got %+v", moves)
	}
}

func TestReconcile_HighlightSets(t *testing.T) {
	a := position(snapshot.StartingBoard, nil)
	a.Hints = []string{"e3", "e4"}
	a.MarkedSquares = []snapshot.Mark{{Square: "d4", Color: "rgb(235, 97, 80)"}}
	a.SelectedSquare = "e2"
	b := a.Clone()
	b.Hints = []string{"e4", "e5"}
	b.MarkedSquares = []snapshot.Mark{{Square: "d4", Color: "rgb(172, 206, 89)"}}
	b.SelectedSquare = ""

	ops, _ := Reconcile(rendered(a), b)

	clears := ofKind(ops, KindClearHighlight)
	if len(clears) != 2 {
		t.Fatalf("ClearHighlight: got %+v", clears)
	}
	if clears[0].Square != "e2" || clears[0].Highlight != HighlightSelected {
		t.Errorf("clear[0]: got %+v", clears[0])
	}
	if clears[1].Square != "e3" || clears[1].Highlight != HighlightHint {
		t.Errorf("clear[1]: got %+v", clears[1])
	}
	sets := ofKind(ops, KindSetHighlight)
	if len(sets) != 2 {
		t.Fatalf("SetHighlight: got %+v", sets)
	}
	if sets[0].Square != "e5" || sets[0].Highlight != HighlightHint {
		t.Errorf("set[0]: got %+v", sets[0])
	}
	if sets[1].Square != "d4" || sets[1].Highlight != HighlightMark || sets[1].Color != "rgb(172, 206, 89)" {
		t.Errorf("set[1]: got %+v", sets[1])
	}
	if len(pieceOps(ops)) != 0 {
		t.Errorf("piece ops without a board change: %+v", ops)
	}
}

func TestReconcile_ArrowsAndResult(t *testing.T) {
	a := position(snapshot.StartingBoard, nil)
	b := a.Clone()
	b.Arrows = []snapshot.Arrow{{From: "g1", To: "f3", Color: snapshot.ArrowGreen}}
	b.GameResult = snapshot.ResultWin

	ops, r := Reconcile(rendered(a), b)
	arrows := ofKind(ops, KindSetArrows)
	if len(arrows) != 1 || len(arrows[0].Arrows) != 1 || arrows[0].Arrows[0].To != "f3" {
		t.Errorf("SetArrows: got %+v", arrows)
	}
	if got := ofKind(ops, KindShowResult); len(got) != 1 || got[0].Result != snapshot.ResultWin {
		t.Errorf("ShowResult: got %+v", got)
	}

	c := b.Clone()
	c.GameResult = ""
	ops, _ = Reconcile(&r, c)
	if len(ofKind(ops, KindHideResult)) != 1 {
		t.Errorf("HideResult: got %+v", ops)
	}
	if len(ofKind(ops, KindSetArrows)) != 0 {
		t.Errorf("SetArrows with unchanged arrows: got %+v", ops)
	}
}

func TestReconcile_UnchangedIsEmpty(t *testing.T) {
	s := position("4k3/8/8/8/8/8/8/4K3", mv("e2", "e1"))
	s.Hints = []string{"d1"}
	ops, _ := Reconcile(rendered(s), s.Clone())
	if len(ops) != 0 {
		t.Errorf("ops for identical snapshots: got %+v", ops)
	}
}
