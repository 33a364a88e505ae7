package extract

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/boardcast/snapshot"
)

const (
	pieceSel     = ".piece"
	highlightSel = ".highlight"
	hintSel      = ".hint, .move-dest, .capture-hint, [class*=legal]"
	arrowSel     = "[data-arrow]"
)

// pieceClasses maps the page's piece classes to piece letters.
var pieceClasses = map[string]byte{
	"wp": 'P', "wn": 'N', "wb": 'B', "wr": 'R', "wq": 'Q', "wk": 'K',
	"bp": 'p', "bn": 'n', "bb": 'b', "br": 'r', "bq": 'q', "bk": 'k',
}

// Highlight opacities the page uses to tell its layers apart.
const (
	opacityLastMove = 0.5
	opacityUserMark = 0.8
)

var (
	opacityRe = regexp.MustCompile(`opacity:\s*([0-9.]+)`)
	rgbRe     = regexp.MustCompile(`rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)`)
)

// squareOf decodes the "square-XY" class (X file 1-8, Y rank 1-8). The
// coordinates are absolute: they do not change with orientation.
func squareOf(n *html.Node) (string, bool) {
	for _, c := range classList(n) {
		rest, ok := strings.CutPrefix(c, "square-")
		if !ok || len(rest) != 2 {
			continue
		}
		file, rank := int(rest[0]-'1'), int(rest[1]-'1')
		if sq := snapshot.SquareName(file, rank); sq != "" {
			return sq, true
		}
	}
	return "", false
}

// readBoard projects every piece element onto the grid. When two elements
// claim the same square the later one in document order wins.
func readBoard(doc *html.Node) snapshot.Grid {
	var g snapshot.Grid
	for _, n := range queryAll(doc, pieceSel) {
		var piece byte
		for _, c := range classList(n) {
			if p, ok := pieceClasses[c]; ok {
				piece = p
				break
			}
		}
		sq, ok := squareOf(n)
		if piece == 0 || !ok {
			continue
		}
		g.Put(sq, piece)
	}
	return g
}

func opacityOf(style string) (float64, bool) {
	m := opacityRe.FindStringSubmatch(style)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func rgbOf(style string) (string, bool) {
	m := rgbRe.FindStringSubmatch(style)
	if m == nil {
		return "", false
	}
	return "rgb(" + m[1] + ", " + m[2] + ", " + m[3] + ")", true
}

// readHighlights fills hints, last move, user marks and selection
// candidates. Hints are collected before anything else so that selection
// candidates can exclude them.
func readHighlights(doc *html.Node, r *raw) {
	seenHint := map[string]bool{}
	for _, n := range queryAll(doc, hintSel) {
		sq, ok := squareOf(n)
		if !ok || seenHint[sq] {
			continue
		}
		seenHint[sq] = true
		r.hints = append(r.hints, sq)
	}

	var dimmed []string
	for _, n := range queryAll(doc, highlightSel) {
		if hasClass(n, "hint") || strings.Contains(getAttr(n, "class"), "legal") {
			continue
		}
		sq, ok := squareOf(n)
		if !ok {
			continue
		}
		style := getAttr(n, "style")
		op, hasOp := opacityOf(style)
		switch {
		case hasOp && op == opacityLastMove:
			dimmed = append(dimmed, sq)
		case hasOp && op == opacityUserMark:
			if color, ok := rgbOf(style); ok {
				r.marks = append(r.marks, snapshot.Mark{Square: sq, Color: color})
			}
		default:
			r.highlighted = append(r.highlighted, sq)
		}
	}

	if len(dimmed) == 2 {
		r.lastMove = some(orderMove(dimmed[0], dimmed[1], r.board))
	}
}

// orderMove decides which of the two last-move squares is the destination.
// The moved piece stands on the destination, so when exactly one of the two
// is occupied it is "to". Otherwise document order is kept.
func orderMove(a, b string, board opt[snapshot.Grid]) snapshot.Move {
	if board.ok {
		pa, pb := board.v.At(a), board.v.At(b)
		if pa != 0 && pb == 0 {
			return snapshot.Move{From: b, To: a}
		}
	}
	return snapshot.Move{From: a, To: b}
}

// arrowPalette lists the RGB triples recognised for each arrow color, in
// match order.
var arrowPalette = []struct {
	color   snapshot.ArrowColor
	triples []string
}{
	{snapshot.ArrowOrange, []string{"255,170,0", "255,165,0"}},
	{snapshot.ArrowRed, []string{"255,0,0", "218,64,79", "248,85,63"}},
	{snapshot.ArrowGreen, []string{"0,255,0", "0,128,0", "101,168,58", "159,207,63"}},
	{snapshot.ArrowBlue, []string{"0,0,255", "82,176,220", "72,193,249"}},
	{snapshot.ArrowYellow, []string{"255,255,0", "241,194,50"}},
}

// classifyArrow reads the first rgb()/rgba() color of a style string and
// matches its whole r,g,b triple against the palette. Anything else is
// orange.
func classifyArrow(style string) snapshot.ArrowColor {
	m := rgbRe.FindStringSubmatch(style)
	if m == nil {
		return snapshot.ArrowOrange
	}
	triple := m[1] + "," + m[2] + "," + m[3]
	for _, entry := range arrowPalette {
		if slices.Contains(entry.triples, triple) {
			return entry.color
		}
	}
	return snapshot.ArrowOrange
}

// readArrows reads "e2e4"-style data-arrow attributes. Arrows with
// malformed squares are skipped.
func readArrows(doc *html.Node) []snapshot.Arrow {
	var arrows []snapshot.Arrow
	for _, n := range queryAll(doc, arrowSel) {
		data := getAttr(n, "data-arrow")
		if len(data) < 4 {
			continue
		}
		from, to := data[:2], data[2:4]
		if !snapshot.ValidSquare(from) || !snapshot.ValidSquare(to) {
			continue
		}
		style := getAttr(n, "style")
		if style == "" {
			style = getAttr(n, "fill")
		}
		arrows = append(arrows, snapshot.Arrow{From: from, To: to, Color: classifyArrow(style)})
	}
	return arrows
}
