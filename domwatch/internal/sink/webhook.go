package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hazyhaar/boardcast/snapshot"
)

// HashHeader carries the snapshot hash so a receiver can drop a delivery
// it already accepted before a retry.
const HashHeader = "X-Boardcast-Hash"

// Webhook POSTs each snapshot as canonical JSON. Pointed at the relay's
// /api/snapshot it is a stateless alternative to the websocket relay sink.
//
// Transport errors, 5xx and 429 are retried with a doubling delay; any
// other 4xx is final, since the receiver rejected the snapshot itself.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWebhook creates a Webhook sink targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// errFinal marks a response that must not be retried.
var errFinal = errors.New("rejected")

func (w *Webhook) Publish(ctx context.Context, s snapshot.GameSnapshot) error {
	body, err := snapshot.Marshal(s)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	hash := snapshot.Hash(s)

	delay := w.backoff
	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay *= 2
		}

		wait, err := w.post(ctx, body, hash)
		if err == nil {
			return nil
		}
		if errors.Is(err, errFinal) {
			return fmt.Errorf("webhook: %w", err)
		}
		lastErr = err
		if wait > delay {
			delay = wait
		}
		w.logger.Warn("webhook: delivery failed", "url", w.url, "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("webhook: all retries exhausted: %w", lastErr)
}

// post makes one delivery attempt. On a retryable failure it returns the
// delay the receiver asked for, if any.
func (w *Webhook) post(ctx context.Context, body []byte, hash string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: new request: %v", errFinal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HashHeader, hash)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return 0, nil
	case code == http.StatusTooManyRequests:
		return retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("status %d", code)
	case code >= 400 && code < 500:
		return 0, fmt.Errorf("%w: status %d", errFinal, code)
	default:
		return 0, fmt.Errorf("status %d", code)
	}
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func (w *Webhook) Close() error { return nil }
