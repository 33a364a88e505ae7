package observer

import (
	"context"
	"time"
)

// handleNavigate starts a settle period after an in-page navigation. The
// new game is rendered piecemeal, so the next cycle waits until mutations
// have been quiet for the settle duration. Pending bursts fold into it.
func (o *Observer) handleNavigate(newURL string) {
	o.logger.Info("observer: navigation detected", "url", newURL)
	o.url.Store(newURL)
	o.debouncer.take()
	if o.settleTimer == nil {
		o.settleTimer = time.NewTimer(o.settle)
		o.settleC = o.settleTimer.C
		return
	}
	o.settleTimer.Reset(o.settle)
}

// handleAttached reacts to the board element being (re)attached: the
// script has just started observing a fresh board, so read it now.
func (o *Observer) handleAttached(ctx context.Context) {
	o.logger.Debug("observer: board attached")
	if o.settleC != nil {
		return
	}
	o.debouncer.take()
	o.cycle(ctx)
}

func (o *Observer) stopSettle() {
	if o.settleTimer != nil {
		o.settleTimer.Stop()
	}
	o.settleTimer = nil
	o.settleC = nil
}
