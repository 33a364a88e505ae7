package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/boardcast/snapshot"
)

const (
	moveRowSel    = ".main-line-row, .move-list-row"
	moveNumberSel = ".move-number"
	whiteMoveSel  = ".white-move"
	blackMoveSel  = ".black-move"
	moveTextSel   = ".node-highlight-content"
	resultSel     = ".game-over-header-component, .game-result-header, .game-result"
)

// readMoveList reads the move rows in document order and keeps the last
// limit of them. A row without a readable number continues the numbering of
// the row before it.
func readMoveList(doc *html.Node, limit int) []snapshot.MoveEntry {
	var out []snapshot.MoveEntry
	prev := 0
	for _, row := range queryAll(doc, moveRowSel) {
		e := snapshot.MoveEntry{Number: rowNumber(row)}
		if e.Number <= 0 {
			e.Number = prev + 1
		}
		e.White = readHalfMove(query(row, whiteMoveSel))
		e.Black = readHalfMove(query(row, blackMoveSel))
		if e.White == nil && e.Black == nil {
			continue
		}
		prev = e.Number
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func rowNumber(row *html.Node) int {
	if v, ok := lookupAttr(row, "data-whole-move-number"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	if n, err := strconv.Atoi(nonDigit.ReplaceAllString(textOf(query(row, moveNumberSel)), "")); err == nil {
		return n
	}
	return 0
}

func readHalfMove(n *html.Node) *snapshot.MoveText {
	if n == nil {
		return nil
	}
	text := textOf(query(n, moveTextSel))
	if text == "" {
		text = textOf(n)
	}
	if text == "" {
		return nil
	}
	selected := hasClass(n, "selected") || query(n, ".selected") != nil
	return &snapshot.MoveText{Text: text, Selected: selected}
}

var (
	drawWords = []string{"draw", "stalemate", "repetition", "insufficient", "½-½", "1/2-1/2", "agreement"}
	wonRe     = regexp.MustCompile(`^(.+?)\s+won\b`)
)

// readResult classifies the game-over banner relative to the bottom (local)
// player. It leaves the result unset while no banner is shown or when the
// banner names nobody it can place.
func readResult(doc *html.Node, r *raw) opt[snapshot.Result] {
	banner := query(doc, resultSel)
	if banner == nil {
		return opt[snapshot.Result]{}
	}
	text := strings.ToLower(textOf(banner))
	if text == "" {
		return opt[snapshot.Result]{}
	}
	local := r.frame.orientation
	if !local.Valid() {
		local = snapshot.White
	}
	winner := func(c snapshot.Color) opt[snapshot.Result] {
		if c == local {
			return some(snapshot.ResultWin)
		}
		return some(snapshot.ResultLoss)
	}

	for _, w := range drawWords {
		if strings.Contains(text, w) {
			return some(snapshot.ResultDraw)
		}
	}
	switch {
	case strings.Contains(text, "you won"):
		return some(snapshot.ResultWin)
	case strings.Contains(text, "you lost"):
		return some(snapshot.ResultLoss)
	case strings.Contains(text, "1-0"), strings.Contains(text, "white won"), strings.Contains(text, "white wins"):
		return winner(snapshot.White)
	case strings.Contains(text, "0-1"), strings.Contains(text, "black won"), strings.Contains(text, "black wins"):
		return winner(snapshot.Black)
	}
	if m := wonRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		for _, c := range []snapshot.Color{local, local.Opponent()} {
			if pl := r.players.Get(c); pl.Name != "" && strings.EqualFold(pl.Name, name) {
				return winner(c)
			}
		}
	}
	return opt[snapshot.Result]{}
}
