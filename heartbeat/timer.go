// Package heartbeat implements the outbound heartbeat schedule and the
// inbound liveness monitor described in spec.md §4.4 (C4).
package heartbeat

import "time"

type timerFactory func(time.Duration) <-chan time.Time

// Timer is a resettable, stoppable interval timer whose tick fires on its
// own goroutine and is delivered on Ticks(). Grounded on the teacher's
// node/control_timer.go ControlTimer: a factory function for the underlying
// channel (so tests can inject a fake clock), plus reset/stop/shutdown
// control channels so the owning goroutine never calls time.Timer.Reset
// directly from multiple places and races itself.
type Timer struct {
	factory    timerFactory
	tickCh     chan struct{}
	resetCh    chan time.Duration
	stopCh     chan struct{}
	shutdownCh chan struct{}
}

// NewTimer returns a Timer using the real wall clock.
func NewTimer() *Timer {
	return newTimer(time.After)
}

func newTimer(factory timerFactory) *Timer {
	return &Timer{
		factory:    factory,
		tickCh:     make(chan struct{}),
		resetCh:    make(chan time.Duration),
		stopCh:     make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Ticks returns the channel that receives a value each time the interval
// elapses without an intervening Reset or Stop.
func (t *Timer) Ticks() <-chan struct{} { return t.tickCh }

// Run drives the timer loop; call it on its own goroutine. It returns when
// Shutdown is called.
func (t *Timer) Run(initial time.Duration) {
	var c <-chan time.Time
	if initial > 0 {
		c = t.factory(initial)
	}
	for {
		select {
		case <-c:
			select {
			case t.tickCh <- struct{}{}:
			case <-t.shutdownCh:
				return
			}
			c = nil
		case d := <-t.resetCh:
			c = t.factory(d)
		case <-t.stopCh:
			c = nil
		case <-t.shutdownCh:
			return
		}
	}
}

// Reset restarts the interval at d, discarding any pending tick.
func (t *Timer) Reset(d time.Duration) {
	select {
	case t.resetCh <- d:
	case <-t.shutdownCh:
	}
}

// Stop disables the timer until the next Reset.
func (t *Timer) Stop() {
	select {
	case t.stopCh <- struct{}{}:
	case <-t.shutdownCh:
	}
}

// Shutdown terminates Run permanently. It is not idempotent: a second call
// panics, matching the teacher's close(shutdownCh) semantics — callers must
// only shut a Timer down once.
func (t *Timer) Shutdown() {
	close(t.shutdownCh)
}
