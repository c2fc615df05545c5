package heartbeat

import (
	"time"

	"github.com/google/uuid"
)

// Scheduler drives the outbound heartbeat schedule of spec.md §4.4: a
// Heartbeat(0) must be sent after HeartBtInt seconds of outbound silence,
// and the clock resets on every outbound send (of any message type, not
// just Heartbeat itself) so a busy session never sends redundant ones.
type Scheduler struct {
	heartBtInt time.Duration
	timer      *Timer
}

// NewScheduler returns a Scheduler for the given negotiated HeartBtInt.
func NewScheduler(heartBtInt time.Duration) *Scheduler {
	return newScheduler(heartBtInt, time.After)
}

func newScheduler(heartBtInt time.Duration, factory timerFactory) *Scheduler {
	return &Scheduler{heartBtInt: heartBtInt, timer: newTimer(factory)}
}

// Start runs the scheduler's clock; call on its own goroutine.
func (s *Scheduler) Start() { s.timer.Run(s.heartBtInt) }

// Ticks fires once per HeartBtInt of outbound silence. The engine's single
// session goroutine must send a Heartbeat(0) on receipt and then call
// OnOutboundSent (sending it itself counts).
func (s *Scheduler) Ticks() <-chan struct{} { return s.timer.Ticks() }

// OnOutboundSent resets the interval, per spec.md §4.4's "resets on any
// outbound send" rule.
func (s *Scheduler) OnOutboundSent() { s.timer.Reset(s.heartBtInt) }

// Stop suspends the schedule (session is not Active).
func (s *Scheduler) Stop() { s.timer.Stop() }

// Shutdown terminates the scheduler's goroutine permanently.
func (s *Scheduler) Shutdown() { s.timer.Shutdown() }

// Action tells the session engine what to do in response to a Monitor tick.
type Action int

const (
	// ActionSendTestRequest means the engine must emit a TestRequest(1)
	// carrying TestReqID and await its echo.
	ActionSendTestRequest Action = iota
	// ActionTimeout means a previously sent TestRequest went unanswered
	// within the transmission grace period; the engine must treat this as
	// a networkError per spec.md §4.2's Active row.
	ActionTimeout
)

// Monitor implements the inbound liveness side of spec.md §4.4: after
// HeartBtInt plus a reasonable transmission allowance of inbound silence,
// challenge the counterparty with a TestRequest; if no message (heartbeat
// echoing that TestReqID, or anything else) arrives within a further grace
// window, the connection is presumed dead.
//
// Like Scheduler, Monitor owns no mutex: spec.md's cooperative single-
// threaded-per-session model means OnInboundMessage and OnTick are only
// ever called from the session engine's own goroutine, at its defined
// suspension points.
type Monitor struct {
	heartBtInt  time.Duration
	grace       time.Duration
	timer       *Timer
	awaitingID  string
}

// NewMonitor returns a Monitor for the given negotiated HeartBtInt. grace is
// the "reasonable transmission time" spec.md §4.4 allows beyond HeartBtInt
// before issuing a challenge, and again before declaring the line dead.
func NewMonitor(heartBtInt, grace time.Duration) *Monitor {
	return newMonitor(heartBtInt, grace, time.After)
}

func newMonitor(heartBtInt, grace time.Duration, factory timerFactory) *Monitor {
	return &Monitor{heartBtInt: heartBtInt, grace: grace, timer: newTimer(factory)}
}

// Start runs the monitor's clock; call on its own goroutine.
func (m *Monitor) Start() { m.timer.Run(m.heartBtInt + m.grace) }

// Ticks fires when the current silence window elapses; call OnTick to learn
// what the engine must do next.
func (m *Monitor) Ticks() <-chan struct{} { return m.timer.Ticks() }

// OnInboundMessage resets the monitor on receipt of any inbound message,
// administrative or application-level, clearing any outstanding challenge.
func (m *Monitor) OnInboundMessage() {
	m.awaitingID = ""
	m.timer.Reset(m.heartBtInt + m.grace)
}

// OnTick reports the action for a tick delivered on Ticks(). The first tick
// after a quiet period issues a challenge; if the challenge itself goes
// unanswered for another grace window, the second tick reports a timeout.
func (m *Monitor) OnTick() (action Action, testReqID string) {
	if m.awaitingID != "" {
		return ActionTimeout, m.awaitingID
	}
	m.awaitingID = uuid.NewString()
	m.timer.Reset(m.grace)
	return ActionSendTestRequest, m.awaitingID
}

// Pending returns the TestReqID awaiting an echo, or "" if none.
func (m *Monitor) Pending() string { return m.awaitingID }

// Stop suspends monitoring (session is not Active).
func (m *Monitor) Stop() { m.timer.Stop() }

// Shutdown terminates the monitor's goroutine permanently.
func (m *Monitor) Shutdown() { m.timer.Shutdown() }
