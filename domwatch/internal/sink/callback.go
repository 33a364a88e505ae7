package sink

import (
	"context"

	"github.com/hazyhaar/boardcast/snapshot"
)

// SnapshotFunc is called for each emitted snapshot.
type SnapshotFunc func(ctx context.Context, s snapshot.GameSnapshot) error

// Callback delivers snapshots via a Go function call, for embedding the
// watcher in a process that consumes snapshots directly.
type Callback struct {
	fn SnapshotFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn SnapshotFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Publish(ctx context.Context, s snapshot.GameSnapshot) error {
	if c.fn != nil {
		return c.fn(ctx, s)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
