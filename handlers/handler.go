// Package handlers implements the per-message-type logic for the seven
// administrative FIX messages, per spec.md §4.5 (C5).
package handlers

import (
	"time"

	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/statemachine"
	"github.com/wxcuop/pyfixmsg-plus/store"
)

// Outcome is the engine-level action a handler's Result asks the session
// engine to take, per spec.md §7's "handlers signal outcomes by returning a
// result; the engine translates result variants" propagation rule.
type Outcome int

const (
	// OutcomeContinue means: send Result.Responses (if any) and keep
	// processing normally.
	OutcomeContinue Outcome = iota
	// OutcomeRejectAndContinue means: send a Reject(35=3) built from
	// Result.RejectReason/RejectText, still advance nextIncoming, keep the
	// session open. Used for recoverable protocol violations.
	OutcomeRejectAndContinue
	// OutcomeLogoutAndDisconnect means: send Logout(35=5) with
	// Result.LogoutText, then disconnect. Used for fatal protocol
	// violations (spec.md §7).
	OutcomeLogoutAndDisconnect
	// OutcomeForceDisconnect means: close the transport immediately with no
	// further protocol messages, e.g. a logon/logout timeout.
	OutcomeForceDisconnect
)

// Result is what a Handler returns after processing one inbound message.
type Result struct {
	Outcome      Outcome
	Responses    []*fix.Message
	RejectReason fix.SessionRejectReason
	RejectRefTag int
	RejectText   string
	LogoutText   string
}

// continueWith is a convenience constructor for the common case of sending
// zero or more responses and continuing normally.
func continueWith(responses ...*fix.Message) Result {
	return Result{Outcome: OutcomeContinue, Responses: responses}
}

// Session is the subset of the session engine (C7) a handler needs: current
// sequence state, the negotiated configuration, and the ability to build a
// correctly-stamped outbound skeleton. Defined here rather than depended on
// from the session package so handlers stay testable against a fake without
// importing the whole engine — the same "depend on an interface the caller
// satisfies" shape as fix.Codec and store.Store.
type Session interface {
	ID() fix.SessionID
	IsInitiator() bool
	Store() store.Store
	StateMachine() *statemachine.Machine

	NextIncoming() int
	NextOutgoing() int
	SetNextIncoming(n int) error
	SetNextOutgoing(n int) error
	ResetSequenceNumbers() error

	HeartBtInt() time.Duration
	SetHeartBtInt(d time.Duration)
	ResetSeqNumOnLogon() bool

	// NewOutbound returns a Message stamped with BeginString/SenderCompID/
	// TargetCompID/SendingTime and msgType, with MsgSeqNum and BodyLength/
	// CheckSum left for the outbound pipeline to assign at send time.
	NewOutbound(msgType fix.MsgType) *fix.Message

	// NotifyLogoffWaiter signals any goroutine blocked in requestLogoff.
	NotifyLogoffWaiter()

	// ClearTestRequest reports whether id matched the outstanding TestReqID
	// the heartbeat monitor is waiting on, clearing it if so.
	ClearTestRequest(id string) bool

	Now() time.Time
}

// Handler processes one inbound administrative message and reports the
// Result the engine must act on.
type Handler interface {
	Handle(session Session, msg *fix.Message) (Result, error)
}
