package wsengine

import (
	"sync"
	"time"
)

// timerIdleDetector is the default IdleDetector, backed by a single
// time.Timer per connection.
type timerIdleDetector struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	onIdle  func()
	stopped bool
}

func newTimerIdleDetector(interval time.Duration) *timerIdleDetector {
	return &timerIdleDetector{interval: interval}
}

func (d *timerIdleDetector) Start(onIdle func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onIdle = onIdle
	d.stopped = false
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *timerIdleDetector) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	cb := d.onIdle
	// Re-arm before invoking the callback: the callback may itself call
	// Reset (Connection.onIdleEvent does, through emitFrame, when it sends
	// a heartbeat ping), and the interval keeps running either way.
	d.timer = time.AfterFunc(d.interval, d.fire)
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (d *timerIdleDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.timer == nil {
		return
	}
	d.timer.Reset(d.interval)
}

func (d *timerIdleDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
