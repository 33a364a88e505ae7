package fetcher

import (
	"bytes"

	"github.com/hazyhaar/boardcast/extract"
)

var shellIndicators = [][]byte{
	[]byte(`<div id="root"></div>`),
	[]byte(`<div id="app"></div>`),
	[]byte(`<div id="__next"></div>`),
	[]byte(`<noscript>you need to enable javascript`),
	[]byte(`<noscript>enable javascript`),
}

// IsShell reports whether html looks like a client-rendered application
// shell.
func IsShell(html []byte) bool {
	lower := bytes.ToLower(html)
	for _, ind := range shellIndicators {
		if bytes.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// Sufficient reports whether the static HTML already carries a populated
// board, so the page can be watched without a browser.
func Sufficient(html []byte, boardSelector string) bool {
	if len(html) < 256 || IsShell(html) {
		return false
	}
	return extract.HasBoard(html, boardSelector)
}
