package observer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"
	"github.com/hazyhaar/boardcast/domwatch/internal/browser"
)

//go:embed board.js
var boardJS string

const bindingName = "__boardcast_signal"

// Attach injects the board script into tab and returns the signals it
// reports. The script is also registered for new documents so it survives
// reloads. The channel is closed when ctx ends.
func Attach(ctx context.Context, tab *browser.Tab, selector string, logger *slog.Logger) (<-chan Signal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(tab.Page); err != nil {
		logger.Warn("observer: addBinding failed (may already exist)", "error", err)
	}

	out := make(chan Signal, 64)
	wait := tab.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		sig, err := parseSignal(e.Payload)
		if err != nil {
			logger.Warn("observer: parse binding payload", "error", err)
			return
		}
		// A full buffer already guarantees a pending cycle.
		select {
		case out <- sig:
		default:
		}
	})
	go func() {
		defer close(out)
		wait()
	}()

	script := injectScript(selector)
	if _, err := tab.Page.EvalOnNewDocument(script); err != nil {
		return nil, fmt.Errorf("observer: register script: %w", err)
	}
	if _, err := tab.Page.Context(ctx).Eval("() => {\n" + script + "\n}"); err != nil {
		return nil, fmt.Errorf("observer: inject script: %w", err)
	}
	logger.Debug("observer: board script injected", "url", tab.PageURL, "selector", selector)
	return out, nil
}

// injectScript prefixes the board script with its selector.
func injectScript(selector string) string {
	sel, _ := json.Marshal(selector)
	return fmt.Sprintf("window.__boardcast_selector = %s;\n%s", sel, boardJS)
}

func parseSignal(payload string) (Signal, error) {
	var sig Signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return Signal{}, err
	}
	switch sig.Kind {
	case SignalMutation, SignalAttached, SignalNavigate:
		return sig, nil
	default:
		return Signal{}, fmt.Errorf("unknown signal %q", sig.Kind)
	}
}
