package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/hazyhaar/boardcast/hub"
	"github.com/hazyhaar/boardcast/snapshot"
)

// accept upgrades the connection when its origin is the relay's own host
// or matches the allow-list. It writes the error response itself and
// returns nil on refusal.
func (s *Server) accept(w http.ResponseWriter, r *http.Request) *websocket.Conn {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("relay: websocket refused",
			"origin", r.Header.Get("Origin"), "path", r.URL.Path, "error", err)
		return nil
	}
	return c
}

// serveProducer reads one snapshot per text message and publishes it.
// Producers get no acknowledgement; a malformed message is logged and
// skipped.
func (s *Server) serveProducer(w http.ResponseWriter, r *http.Request) {
	c := s.accept(w, r)
	if c == nil {
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")
	c.SetReadLimit(s.cfg.MaxMessage)

	s.logger.Info("relay: producer connected", "remote", r.RemoteAddr)
	for {
		typ, data, err := c.Read(r.Context())
		if err != nil {
			s.logger.Info("relay: producer disconnected", "remote", r.RemoteAddr, "reason", closeReason(err))
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if _, err := s.Ingest(data); err != nil {
			s.logger.Warn("relay: producer message", "remote", r.RemoteAddr, "error", err)
		}
	}
}

// serveSubscriber writes the current snapshot on connect, then every newer
// one. A slow renderer skips intermediate snapshots instead of queueing
// them.
func (s *Server) serveSubscriber(w http.ResponseWriter, r *http.Request) {
	c := s.accept(w, r)
	if c == nil {
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	sub := s.hub.Subscribe()
	defer sub.Close()

	// Renderers never talk back; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := c.CloseRead(r.Context())
	go s.ping(ctx, c)

	s.logger.Info("relay: subscriber connected", "subscriber", sub.ID(), "remote", r.RemoteAddr)
	defer func() {
		s.logger.Info("relay: subscriber disconnected", "subscriber", sub.ID(), "dropped", sub.Dropped())
	}()
	for {
		u, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, hub.ErrClosed) {
				c.Close(websocket.StatusGoingAway, "relay shutting down")
			}
			return
		}
		data, err := snapshot.Marshal(u.Snapshot)
		if err != nil {
			s.logger.Warn("relay: marshal snapshot", "seq", u.Seq, "error", err)
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		err = c.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.logger.Debug("relay: subscriber write", "subscriber", sub.ID(), "error", err)
			return
		}
	}
}

func (s *Server) ping(ctx context.Context, c *websocket.Conn) {
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func closeReason(err error) string {
	if status := websocket.CloseStatus(err); status != -1 {
		return status.String()
	}
	return err.Error()
}
