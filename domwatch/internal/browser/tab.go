package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab is the game page: a stealth rod page navigated to the game URL.
type Tab struct {
	Page    *rod.Page
	PageURL string
}

// OpenTab creates a stealth page, applies resource blocking and navigates
// to pageURL. Navigation and load are bounded by timeout.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, timeout time.Duration) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load", "url", pageURL, "error", err)
	}
	return &Tab{Page: page, PageURL: pageURL}, nil
}

// WaitBoard blocks until an element matching selector exists. rod retries
// the lookup until ctx ends.
func (t *Tab) WaitBoard(ctx context.Context, selector string) error {
	if _, err := t.Page.Context(ctx).Element(selector); err != nil {
		return fmt.Errorf("browser: wait board %q: %w", selector, err)
	}
	return nil
}

// HTML serialises the live document in one evaluation, so an extraction
// cycle always reads a single consistent copy.
func (t *Tab) HTML(ctx context.Context) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: read document: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
