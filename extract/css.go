package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// The board page is queried with a subset of CSS selectors:
//   - tag: "svg", "polygon"
//   - .class, chained: ".clock-component.clock-player-turn"
//   - #id: "#board-layout-main"
//   - [attr], [attr=val], [attr*=val]: "[data-arrow]", "[class*=legal]"
//   - descendant combinator (space): "svg.arrows polygon"
//   - selector lists (comma): ".hint, .move-dest"
//
// Matching runs right to left so results always come back in document order
// and without duplicates, whatever the nesting.

type attrSelector struct {
	key      string
	val      string
	contains bool
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrSelector
}

// selector is one comma-separated member: compounds joined by descendant
// combinators, outermost first.
type selector []compound

func parseSelectorList(list string) []selector {
	var out []selector
	for _, member := range strings.Split(list, ",") {
		parts := strings.Fields(member)
		if len(parts) == 0 {
			continue
		}
		sel := make(selector, 0, len(parts))
		for _, p := range parts {
			sel = append(sel, parseCompound(p))
		}
		out = append(out, sel)
	}
	return out
}

// parseCompound parses "tag.a.b#id[attr=val]".
func parseCompound(s string) compound {
	var c compound
	for len(s) > 0 {
		switch s[0] {
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				end = len(s)
			}
			c.attrs = append(c.attrs, parseAttr(s[1:end]))
			if end == len(s) {
				s = ""
			} else {
				s = s[end+1:]
			}
		case '.', '#':
			kind := s[0]
			s = s[1:]
			n := nextDelim(s)
			if kind == '.' {
				c.classes = append(c.classes, s[:n])
			} else {
				c.id = s[:n]
			}
			s = s[n:]
		default:
			n := nextDelim(s)
			c.tag = strings.ToLower(s[:n])
			s = s[n:]
		}
	}
	return c
}

func nextDelim(s string) int {
	if i := strings.IndexAny(s, ".#["); i >= 0 {
		return i
	}
	return len(s)
}

func parseAttr(s string) attrSelector {
	if i := strings.Index(s, "*="); i >= 0 {
		return attrSelector{key: s[:i], val: strings.Trim(s[i+2:], `"'`), contains: true}
	}
	if i := strings.IndexByte(s, '='); i >= 0 {
		return attrSelector{key: s[:i], val: strings.Trim(s[i+1:], `"'`)}
	}
	return attrSelector{key: s}
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && getAttr(n, "id") != c.id {
		return false
	}
	for _, cls := range c.classes {
		if !hasClass(n, cls) {
			return false
		}
	}
	for _, a := range c.attrs {
		val, ok := lookupAttr(n, a.key)
		if !ok {
			return false
		}
		switch {
		case a.contains && !strings.Contains(val, a.val):
			return false
		case !a.contains && a.val != "" && val != a.val:
			return false
		}
	}
	return true
}

// matches checks n against the selector, walking ancestors up to (and
// including) root for the descendant parts.
func (sel selector) matches(n, root *html.Node) bool {
	last := len(sel) - 1
	if !sel[last].matches(n) {
		return false
	}
	i := last - 1
	for p := n.Parent; p != nil && i >= 0; p = p.Parent {
		if sel[i].matches(p) {
			i--
		}
		if p == root {
			break
		}
	}
	return i < 0
}

// queryAll returns every element under root (excluding root itself) that
// matches any member of the selector list, in document order.
func queryAll(root *html.Node, list string) []*html.Node {
	if root == nil {
		return nil
	}
	sels := parseSelectorList(list)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			for _, sel := range sels {
				if sel.matches(c, root) {
					results = append(results, c)
					break
				}
			}
			walk(c)
		}
	}
	walk(root)
	return results
}

// query returns the first match under root, or nil.
func query(root *html.Node, list string) *html.Node {
	if m := queryAll(root, list); len(m) > 0 {
		return m[0]
	}
	return nil
}

// closest returns n or its nearest ancestor matching the selector list.
func closest(n *html.Node, list string) *html.Node {
	sels := parseSelectorList(list)
	for p := n; p != nil; p = p.Parent {
		for _, sel := range sels {
			if sel.matches(p, nil) {
				return p
			}
		}
	}
	return nil
}

// getAttr returns the value of an attribute on a node.
func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func classList(n *html.Node) []string {
	return strings.Fields(getAttr(n, "class"))
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range classList(n) {
		if c == class {
			return true
		}
	}
	return false
}

// textOf returns the whitespace-collapsed text content of n.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
