// Package sink defines output backends for board snapshots.
package sink

import (
	"context"

	"github.com/hazyhaar/boardcast/snapshot"
)

// Sink is the output interface. Implementations deliver snapshots to
// different backends (stdout, webhook, relay websocket, in-process
// callback).
type Sink interface {
	Publish(ctx context.Context, s snapshot.GameSnapshot) error
	Close() error
}
