// Package transport carries snapshots between processes over websockets:
// Publisher pushes a producer's snapshots to the relay and Subscriber feeds
// a renderer from it. Both reconnect on their own after failures.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/hazyhaar/boardcast/snapshot"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("transport: publisher closed")

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	// URL is the relay producer endpoint, e.g. ws://localhost:3000/ws/producer.
	URL string
	// Reconnect is the delay between connection attempts. Default: 3s.
	Reconnect time.Duration
	// WriteTimeout bounds one message write. Default: 5s.
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Publisher keeps one connection to the relay and writes the latest
// published snapshot to it. Publish never blocks on the network: while a
// write is in flight or the relay is unreachable, newer snapshots replace
// older unsent ones, and the latest is sent again after every reconnect.
type Publisher struct {
	cfg    PublisherConfig
	logger *slog.Logger

	mu     sync.Mutex
	latest []byte
	seq    uint64
	closed bool

	wake      chan struct{}
	connected atomic.Bool
	sent      atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPublisher creates a Publisher and starts connecting in the
// background.
func NewPublisher(cfg PublisherConfig) *Publisher {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		cfg:    cfg,
		logger: cfg.Logger,
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// Publish queues s for sending. It returns once s is queued.
func (p *Publisher) Publish(_ context.Context, s snapshot.GameSnapshot) error {
	data, err := snapshot.Marshal(s)
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	p.latest = data
	p.seq++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Connected reports whether the relay connection is currently up.
func (p *Publisher) Connected() bool { return p.connected.Load() }

// Sent returns how many messages were written to the relay.
func (p *Publisher) Sent() uint64 { return p.sent.Load() }

// Close stops the publisher and waits for its connection to shut down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	<-p.done
	return nil
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.done)
	for {
		c, _, err := websocket.Dial(ctx, p.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("transport: relay dial failed", "url", p.cfg.URL, "retry_in", p.cfg.Reconnect, "error", err)
		} else {
			p.logger.Info("transport: relay connected", "url", p.cfg.URL)
			p.connected.Store(true)
			err = p.pump(ctx, c)
			p.connected.Store(false)
			c.Close(websocket.StatusNormalClosure, "")
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("transport: relay disconnected", "url", p.cfg.URL, "retry_in", p.cfg.Reconnect, "error", err)
		}
		if !sleep(ctx, p.cfg.Reconnect) {
			return
		}
	}
}

// pump writes the latest snapshot whenever it changes, starting with the
// current one, until the connection fails or ctx ends.
func (p *Publisher) pump(ctx context.Context, c *websocket.Conn) error {
	// The relay never writes to producers; CloseRead answers control
	// frames and ends ctx when the connection drops.
	ctx = c.CloseRead(ctx)
	var sentSeq uint64
	for {
		p.mu.Lock()
		data, seq := p.latest, p.seq
		p.mu.Unlock()

		if data != nil && seq != sentSeq {
			wctx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
			err := c.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
			sentSeq = seq
			p.sent.Add(1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		}
	}
}

// sleep waits d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
