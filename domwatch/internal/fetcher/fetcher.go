// Package fetcher implements the HTTP-only acquisition path: no browser,
// no JS, the game page is polled with conditional GETs. It only serves
// pages whose server-rendered HTML already carries the board.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Result is the outcome of an HTTP fetch.
type Result struct {
	Body       []byte
	StatusCode int
	ETag       string
	LastMod    string
}

// Fetcher performs HTTP GETs.
type Fetcher struct {
	client *http.Client
	ua     string
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs a URL. etag and lastMod, when set, make the request
// conditional; a 304 comes back with an empty body.
func (f *Fetcher) Fetch(ctx context.Context, pageURL, etag, lastMod string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	// Cap read to 10MB to prevent runaway downloads.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))

	return &Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
		LastMod:    resp.Header.Get("Last-Modified"),
	}, nil
}

// Page polls one URL. It remembers the last body and its validators so
// unchanged pages cost a 304.
type Page struct {
	f   *Fetcher
	url string

	mu      sync.Mutex
	body    []byte
	etag    string
	lastMod string
}

// Page returns a poller for pageURL.
func (f *Fetcher) Page(pageURL string) *Page {
	return &Page{f: f, url: pageURL}
}

// HTML returns the current page body.
func (p *Page) HTML(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	etag, lastMod := p.etag, p.lastMod
	if p.body == nil {
		etag, lastMod = "", ""
	}
	res, err := p.f.Fetch(ctx, p.url, etag, lastMod)
	if err != nil {
		return nil, err
	}
	switch {
	case res.StatusCode == http.StatusNotModified:
		return p.body, nil
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return nil, fmt.Errorf("fetcher: %s: status %d", p.url, res.StatusCode)
	}
	p.body, p.etag, p.lastMod = res.Body, res.ETag, res.LastMod
	return p.body, nil
}
