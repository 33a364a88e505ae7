package sink

import (
	"log/slog"

	"github.com/hazyhaar/boardcast/transport"
)

// NewRelay creates a sink that streams snapshots to the relay's producer
// websocket. It reconnects on its own; only the latest snapshot is kept
// while the relay is unreachable.
func NewRelay(url string, logger *slog.Logger) Sink {
	return transport.NewPublisher(transport.PublisherConfig{URL: url, Logger: logger})
}
