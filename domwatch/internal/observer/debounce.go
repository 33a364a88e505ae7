package observer

import (
	"time"
)

// debounceConfig controls how mutation signals are coalesced.
type debounceConfig struct {
	// Window is the quiet period after the last signal. Default: 50ms.
	Window time.Duration
	// MaxWait bounds how long a burst may postpone its cycle. Default: 500ms.
	MaxWait time.Duration
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 50 * time.Millisecond
	}
	if dc.MaxWait < dc.Window {
		dc.MaxWait = 10 * dc.Window
	}
}

// debouncer turns a stream of mutation signals into extraction requests.
// A burst is pending from its first signal until it is taken; signals that
// arrive meanwhile restart the quiet window instead of queueing another
// cycle. It is owned by the observer loop and not safe for concurrent use.
type debouncer struct {
	cfg     debounceConfig
	now     func() time.Time
	pending bool
	first   time.Time
	timer   *time.Timer
	timerCh <-chan time.Time
}

func newDebouncer(cfg debounceConfig) *debouncer {
	cfg.defaults()
	return &debouncer{cfg: cfg, now: time.Now}
}

// add records a signal. It reports true when the pending burst has
// already waited MaxWait and must be flushed now.
func (d *debouncer) add() bool {
	now := d.now()
	if !d.pending {
		d.pending = true
		d.first = now
	}
	elapsed := now.Sub(d.first)
	if elapsed >= d.cfg.MaxWait {
		return true
	}
	wait := d.cfg.Window
	if left := d.cfg.MaxWait - elapsed; left < wait {
		wait = left
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(wait)
	d.timerCh = d.timer.C
	return false
}

// timerC fires when the pending burst is due. It is nil when nothing is
// pending.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

// take clears the pending burst and reports whether there was one.
func (d *debouncer) take() bool {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
	was := d.pending
	d.pending = false
	return was
}
