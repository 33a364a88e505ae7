package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/boardcast/snapshot"
)

// Stdout writes one canonical snapshot JSON per line to an io.Writer
// (default os.Stdout).
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

func (s *Stdout) Publish(_ context.Context, snap snapshot.GameSnapshot) error {
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(data, '\n'))
	return err
}

func (s *Stdout) Close() error { return nil }
