package transport

import (
	"context"
	"log/slog"
	"time"

	"nhooyr.io/websocket"

	"github.com/hazyhaar/boardcast/snapshot"
)

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	// URL is the relay renderer endpoint, e.g. ws://localhost:3000/ws.
	URL string
	// Reconnect is the delay between connection attempts. Default: 2s.
	Reconnect time.Duration
	// MaxMessage bounds one received message in bytes. Default: 1 MiB.
	MaxMessage int64
	// OnConnect is called after every successful connection, before the
	// first snapshot of that connection. Renderers drop their previous
	// state here: the relay replays its current snapshot, which may be
	// unrelated to what was rendered before the gap.
	OnConnect func()
	// OnSnapshot is called for every snapshot received, in order.
	OnSnapshot func(snapshot.GameSnapshot)
	Logger     *slog.Logger
}

// Subscriber reads snapshots from the relay.
type Subscriber struct {
	cfg    SubscriberConfig
	logger *slog.Logger
}

// NewSubscriber creates a Subscriber. Run starts it.
func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 2 * time.Second
	}
	if cfg.MaxMessage <= 0 {
		cfg.MaxMessage = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnConnect == nil {
		cfg.OnConnect = func() {}
	}
	if cfg.OnSnapshot == nil {
		cfg.OnSnapshot = func(snapshot.GameSnapshot) {}
	}
	return &Subscriber{cfg: cfg, logger: cfg.Logger}
}

// Run connects, delivers snapshots and reconnects after failures until ctx
// ends. It returns nil on cancellation.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		c, _, err := websocket.Dial(ctx, s.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("transport: relay dial failed", "url", s.cfg.URL, "retry_in", s.cfg.Reconnect, "error", err)
		} else {
			s.logger.Info("transport: subscribed", "url", s.cfg.URL)
			c.SetReadLimit(s.cfg.MaxMessage)
			s.cfg.OnConnect()
			err = s.read(ctx, c)
			c.Close(websocket.StatusNormalClosure, "")
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("transport: subscription lost", "url", s.cfg.URL, "retry_in", s.cfg.Reconnect, "error", err)
		}
		if !sleep(ctx, s.cfg.Reconnect) {
			return nil
		}
	}
}

func (s *Subscriber) read(ctx context.Context, c *websocket.Conn) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		snap, err := snapshot.Unmarshal(data)
		if err != nil {
			s.logger.Warn("transport: malformed snapshot", "error", err)
			continue
		}
		s.cfg.OnSnapshot(snapshot.Canonical(snap))
	}
}
