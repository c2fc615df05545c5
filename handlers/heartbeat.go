package handlers

import "github.com/wxcuop/pyfixmsg-plus/fix"

// HeartbeatHandler implements spec.md §4.5's Heartbeat (35=0) rule.
// Updating the generic last-received timestamp is done unconditionally by
// the engine's inbound pipeline for every message type; this handler only
// deals with the TestReqID correlation that is specific to Heartbeat.
type HeartbeatHandler struct{}

func (HeartbeatHandler) Handle(s Session, msg *fix.Message) (Result, error) {
	if id, ok := msg.Get(fix.TagTestReqID); ok {
		s.ClearTestRequest(id)
	}
	return continueWith(), nil
}

// TestRequestHandler implements spec.md §4.5's TestRequest (35=1) rule:
// immediately echo a Heartbeat carrying the same TestReqID.
type TestRequestHandler struct{}

func (TestRequestHandler) Handle(s Session, msg *fix.Message) (Result, error) {
	resp := s.NewOutbound(fix.MsgTypeHeartbeat)
	if id, ok := msg.Get(fix.TagTestReqID); ok {
		resp.Set(fix.TagTestReqID, id)
	}
	return continueWith(resp), nil
}
