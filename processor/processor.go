// Package processor implements the message-type registry and dispatcher
// described in spec.md §4.6 (C6).
package processor

import (
	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/handlers"
)

// AppCallback delivers an unrecognized MsgType to the application, per
// spec.md §4.5's "forward to the application callback" rule and §6's
// onMessageFromApp contract.
type AppCallback func(session handlers.Session, msg *fix.Message) (handlers.Result, error)

// Processor is a dictionary from MsgType to Handler, per spec.md §4.6: "a
// registry from MsgType (string) to handler. Dispatch is a dictionary
// lookup; unknown MsgTypes are treated as application messages." The
// processor itself is purely synchronous relative to one inbound message —
// any suspension happens inside a handler or the app callback, not here.
type Processor struct {
	handlers map[fix.MsgType]handlers.Handler
	onApp    AppCallback
}

// New returns a Processor with the seven administrative handlers
// pre-registered and onApp as the fallback for every other MsgType.
func New(codec fix.Codec, onApp AppCallback) *Processor {
	p := &Processor{handlers: make(map[fix.MsgType]handlers.Handler), onApp: onApp}
	p.Register(fix.MsgTypeLogon, handlers.LogonHandler{})
	p.Register(fix.MsgTypeLogout, handlers.LogoutHandler{})
	p.Register(fix.MsgTypeHeartbeat, handlers.HeartbeatHandler{})
	p.Register(fix.MsgTypeTestRequest, handlers.TestRequestHandler{})
	p.Register(fix.MsgTypeResendRequest, handlers.ResendRequestHandler{Codec: codec})
	p.Register(fix.MsgTypeSequenceReset, handlers.SequenceResetHandler{})
	p.Register(fix.MsgTypeReject, handlers.RejectHandler{})
	return p
}

// Register overrides or adds the handler for a MsgType. Exposed so a caller
// can swap in a test double or extend coverage beyond the seven
// administrative types.
func (p *Processor) Register(msgType fix.MsgType, h handlers.Handler) {
	p.handlers[msgType] = h
}

// Dispatch routes msg to its registered handler, or to the application
// callback if none is registered for its MsgType.
func (p *Processor) Dispatch(session handlers.Session, msg *fix.Message) (handlers.Result, error) {
	if h, ok := p.handlers[msg.MsgType()]; ok {
		return h.Handle(session, msg)
	}
	if p.onApp == nil {
		return handlers.Result{Outcome: handlers.OutcomeContinue}, nil
	}
	return p.onApp(session, msg)
}
