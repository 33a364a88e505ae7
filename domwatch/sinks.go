package domwatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/boardcast/domwatch/internal/sink"
	"github.com/hazyhaar/boardcast/snapshot"
)

// Sink is the output interface for emitted snapshots.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewRelaySink creates a sink streaming to the relay's producer websocket.
func NewRelaySink(url string, logger *slog.Logger) Sink {
	return sink.NewRelay(url, logger)
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn func(ctx context.Context, s snapshot.GameSnapshot) error) Sink {
	return sink.NewCallback(fn)
}

// BuildSinks creates the sinks listed in cfgs. An empty list yields a
// stdout sink.
func BuildSinks(cfgs []SinkConfig, stdout io.Writer, logger *slog.Logger) ([]Sink, error) {
	if len(cfgs) == 0 {
		return []Sink{NewStdoutSink(stdout)}, nil
	}
	sinks := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		switch c.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(stdout))
		case "webhook", "relay":
			if c.URL == "" {
				closeAll(sinks)
				return nil, fmt.Errorf("domwatch: sink %d (%s): url required", i, c.Type)
			}
			if c.Type == "webhook" {
				sinks = append(sinks, NewWebhookSink(c.URL, logger))
			} else {
				sinks = append(sinks, NewRelaySink(c.URL, logger))
			}
		default:
			closeAll(sinks)
			return nil, fmt.Errorf("domwatch: sink %d: unknown type %q", i, c.Type)
		}
	}
	return sinks, nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		s.Close()
	}
}
