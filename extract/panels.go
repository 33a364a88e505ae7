package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/boardcast/snapshot"
)

const (
	bottomPanelSel = ".board-layout-bottom, .player-bottom, .board-player-default-bottom"
	topPanelSel    = ".board-layout-top, .player-top, .board-player-default-top"

	nameSel     = ".user-username-component, .user-tagline-username, [data-username]"
	ratingSel   = ".user-rating-component, .user-tagline-rating"
	titleSel    = ".user-chess-title-component, .user-title-component"
	avatarSel   = ".player-avatar img, img.avatar"
	flagSel     = ".country-flags-component"
	clockSel    = ".clock-component"
	clockText   = ".clock-time-monospace"
	capturedSel = ".captured-pieces"
	scoreSel    = ".captured-pieces-score, .material-score"
)

// frame is the single authoritative orientation lookup. Every
// color-relative field (players, clocks, turn, captured pieces) is keyed
// through it so they cannot disagree within one cycle.
type frame struct {
	orientation snapshot.Color
	bottom      *html.Node
	top         *html.Node
}

// resolveFrame reads orientation from the bottom panel's clock color. The
// bottom panel is always the local viewer; board flip classes and
// coordinate labels are deliberately not consulted.
func resolveFrame(doc *html.Node) frame {
	f := frame{
		orientation: snapshot.White,
		bottom:      query(doc, bottomPanelSel),
		top:         query(doc, topPanelSel),
	}
	if f.bottom == nil {
		return f
	}
	for _, clock := range queryAll(f.bottom, clockSel) {
		switch {
		case hasClass(clock, "clock-black"):
			f.orientation = snapshot.Black
			return f
		case hasClass(clock, "clock-white"):
			return f
		}
	}
	return f
}

type panel struct {
	node  *html.Node
	color snapshot.Color
}

// panels returns the panels that exist on the page with their colors.
func (f frame) panels() []panel {
	var out []panel
	if f.bottom != nil {
		out = append(out, panel{f.bottom, f.orientation})
	}
	if f.top != nil {
		out = append(out, panel{f.top, f.orientation.Opponent()})
	}
	return out
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

func readPlayers(r *raw) {
	for _, p := range r.frame.panels() {
		r.players.Set(p.color, readPlayer(p.node))
	}
}

func readPlayer(root *html.Node) snapshot.Player {
	var pl snapshot.Player
	if n := query(root, nameSel); n != nil {
		pl.Name = textOf(n)
		if pl.Name == "" {
			pl.Name = strings.TrimSpace(getAttr(n, "data-username"))
		}
	}
	if n := query(root, ratingSel); n != nil {
		// "(1532)" and similar decorations.
		if v, err := strconv.Atoi(nonDigit.ReplaceAllString(textOf(n), "")); err == nil {
			pl.Rating = v
		}
	}
	if n := query(root, titleSel); n != nil {
		pl.Title = textOf(n)
	}
	if n := query(root, avatarSel); n != nil {
		pl.Avatar = getAttr(n, "src")
	}
	if n := query(root, flagSel); n != nil {
		for _, c := range classList(n) {
			if code, ok := strings.CutPrefix(c, "country-"); ok && code != "" {
				pl.CountryCode = code
				break
			}
		}
	}
	return pl
}

func readClocks(r *raw) {
	for _, p := range r.frame.panels() {
		clock := query(p.node, clockSel)
		if clock == nil {
			continue
		}
		text := textOf(query(clock, clockText))
		if text == "" {
			text = textOf(clock)
		}
		r.clocks.Set(p.color, parseClock(text))
		if hasClass(clock, "clock-player-turn") || hasClass(clock, "clock-running") {
			r.turn = some(p.color)
		}
	}
}

// parseClock reads "H:MM:SS", "M:SS" or bare seconds ("12.3") by counting
// separators. It returns nil for anything it cannot read.
func parseClock(text string) *float64 {
	text = strings.Join(strings.Fields(text), "")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return nil
	}
	var total float64
	for i, part := range parts {
		var v float64
		var err error
		if i == len(parts)-1 {
			v, err = strconv.ParseFloat(part, 64)
		} else {
			var n int
			n, err = strconv.Atoi(part)
			v = float64(n)
		}
		if err != nil || v < 0 {
			return nil
		}
		total = total*60 + v
	}
	return &total
}

// capturedToken matches "captured-pieces-b-pawn" and
// "captured-pieces-w-3-pawns".
var capturedToken = regexp.MustCompile(`^captured-pieces-([wb])-(?:(\d+)-)?(pawn|knight|bishop|rook|queen)s?$`)

var pieceLetters = map[string]string{
	"pawn": "p", "knight": "n", "bishop": "b", "rook": "r", "queen": "q",
}

func readCaptured(r *raw) {
	for _, p := range r.frame.panels() {
		container := query(p.node, capturedSel)
		if container == nil {
			continue
		}
		var c snapshot.Captured
		c.Pieces = []string{}
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				c.Pieces = append(c.Pieces, capturedCodes(child)...)
				walk(child)
			}
		}
		walk(container)
		c.Score = textOf(query(p.node, scoreSel))
		r.captured.Set(p.color, c)
	}
}

// capturedCodes expands one marker element into piece codes.
func capturedCodes(n *html.Node) []string {
	if n.Type != html.ElementNode {
		return nil
	}
	var out []string
	for _, c := range classList(n) {
		m := capturedToken.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		count := 1
		if m[2] != "" {
			v, err := strconv.Atoi(m[2])
			if err != nil || v <= 0 || v > 8 {
				continue
			}
			count = v
		}
		code := m[1] + pieceLetters[m[3]]
		for i := 0; i < count; i++ {
			out = append(out, code)
		}
	}
	return out
}
