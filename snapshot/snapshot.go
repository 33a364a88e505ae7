// Package snapshot defines the canonical game-state value exchanged between the
// watcher, the relay and every renderer. These types are the wire contract:
// one GameSnapshot is one JSON text message on every transport.
//
// A GameSnapshot is immutable once constructed. Code that needs a variant
// must Clone it first.
package snapshot

// Color is one side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other color. Anything that is not Black maps to Black.
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// Valid reports whether c is white or black.
func (c Color) Valid() bool { return c == White || c == Black }

// Result is the terminal outcome from the local viewer's perspective.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// ArrowColor is the fixed palette annotation arrows are classified into.
type ArrowColor string

const (
	ArrowRed    ArrowColor = "red"
	ArrowGreen  ArrowColor = "green"
	ArrowBlue   ArrowColor = "blue"
	ArrowYellow ArrowColor = "yellow"
	ArrowOrange ArrowColor = "orange"
)

// Player is the panel information shown for one side. Every field is optional.
type Player struct {
	Name        string `json:"name,omitempty"`
	Rating      int    `json:"rating,omitempty"`
	Title       string `json:"title,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// Players maps each color to its panel.
type Players struct {
	White Player `json:"white"`
	Black Player `json:"black"`
}

// Get returns the player for c.
func (p Players) Get(c Color) Player {
	if c == Black {
		return p.Black
	}
	return p.White
}

// Set stores pl under c.
func (p *Players) Set(c Color, pl Player) {
	if c == Black {
		p.Black = pl
		return
	}
	p.White = pl
}

// Clocks holds remaining seconds per color; nil when untimed or unreadable.
type Clocks struct {
	White *float64 `json:"white"`
	Black *float64 `json:"black"`
}

// Get returns the clock for c.
func (c Clocks) Get(col Color) *float64 {
	if col == Black {
		return c.Black
	}
	return c.White
}

// Set stores v under col.
func (c *Clocks) Set(col Color, v *float64) {
	if col == Black {
		c.Black = v
		return
	}
	c.White = v
}

// Move is a from/to pair of algebraic squares.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Arrow is a user annotation arrow.
type Arrow struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Color ArrowColor `json:"color"`
}

// Mark is a user-colored square. Color is the literal "rgb(r, g, b)" read from
// the page.
type Mark struct {
	Square string `json:"square"`
	Color  string `json:"color"`
}

// Captured lists the piece codes ("wp", "bn", ...) one side has taken, plus the
// material score string displayed next to them ("+2").
type Captured struct {
	Pieces []string `json:"pieces"`
	Score  string   `json:"score,omitempty"`
}

// CapturedPieces maps each color to what that side has captured.
type CapturedPieces struct {
	White Captured `json:"white"`
	Black Captured `json:"black"`
}

// Get returns the captured set for c.
func (cp CapturedPieces) Get(c Color) Captured {
	if c == Black {
		return cp.Black
	}
	return cp.White
}

// Set stores v under c.
func (cp *CapturedPieces) Set(c Color, v Captured) {
	if c == Black {
		cp.Black = v
		return
	}
	cp.White = v
}

// MoveText is one half-move as displayed in the move list.
type MoveText struct {
	Text     string `json:"text"`
	Selected bool   `json:"selected,omitempty"`
}

// MoveEntry is one full-move row of the move list.
type MoveEntry struct {
	Number int       `json:"number"`
	White  *MoveText `json:"white,omitempty"`
	Black  *MoveText `json:"black,omitempty"`
}

// GameSnapshot is one fully formed description of the observable game state.
type GameSnapshot struct {
	Board          string         `json:"board"`
	Players        Players        `json:"players"`
	Clocks         Clocks         `json:"clocks"`
	Turn           Color          `json:"turn"`
	Orientation    Color          `json:"orientation"`
	LastMove       *Move          `json:"lastMove"`
	Arrows         []Arrow        `json:"arrows"`
	MarkedSquares  []Mark         `json:"markedSquares"`
	Hints          []string       `json:"hints"`
	SelectedSquare string         `json:"selectedSquare,omitempty"`
	GameResult     Result         `json:"gameResult,omitempty"`
	CapturedPieces CapturedPieces `json:"capturedPieces"`
	MoveList       []MoveEntry    `json:"moveList"`
	IsNewGame      bool           `json:"isNewGame"`
}

// Clone returns a deep copy of s.
func (s GameSnapshot) Clone() GameSnapshot {
	out := s
	out.Clocks = Clocks{White: cloneFloat(s.Clocks.White), Black: cloneFloat(s.Clocks.Black)}
	if s.LastMove != nil {
		m := *s.LastMove
		out.LastMove = &m
	}
	out.Arrows = append([]Arrow(nil), s.Arrows...)
	out.MarkedSquares = append([]Mark(nil), s.MarkedSquares...)
	out.Hints = append([]string(nil), s.Hints...)
	out.CapturedPieces = CapturedPieces{
		White: Captured{Pieces: append([]string(nil), s.CapturedPieces.White.Pieces...), Score: s.CapturedPieces.White.Score},
		Black: Captured{Pieces: append([]string(nil), s.CapturedPieces.Black.Pieces...), Score: s.CapturedPieces.Black.Score},
	}
	if s.MoveList != nil {
		out.MoveList = make([]MoveEntry, len(s.MoveList))
		for i, e := range s.MoveList {
			out.MoveList[i] = MoveEntry{Number: e.Number, White: cloneText(e.White), Black: cloneText(e.Black)}
		}
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneText(t *MoveText) *MoveText {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
