package handlers

import (
	"strconv"
	"time"

	"github.com/wxcuop/pyfixmsg-plus/fix"
)

// LogonHandler implements spec.md §4.5's Logon (35=A) rules for both roles;
// which branch runs is decided by Session.IsInitiator, since the wire
// message looks identical to a request and a response.
type LogonHandler struct{}

func (LogonHandler) Handle(s Session, msg *fix.Message) (Result, error) {
	resetFlag := msg.Has(fix.TagResetSeqNumFlag) && mustGet(msg, fix.TagResetSeqNumFlag) == "Y"
	heartBtInt, _ := msg.GetInt(fix.TagHeartBtInt)

	if s.IsInitiator() {
		return handleLogonResponse(s, msg, resetFlag, heartBtInt)
	}
	return handleLogonRequest(s, msg, resetFlag, heartBtInt)
}

// handleLogonResponse implements the initiator-side rule: a 141=Y request
// makes the response's MsgSeqNum irrelevant; otherwise the ordinary gap
// rules apply. The "higher" case is left to the engine's generic seq-gap
// switch, which already sends a ResendRequest for every bypassesGap message
// type including Logon — this handler only needs to fall through and let
// the heartbeat interval take effect.
func handleLogonResponse(s Session, msg *fix.Message, resetFlag bool, heartBtInt int) (Result, error) {
	if !resetFlag {
		seq := msg.SeqNum()
		next := s.NextIncoming()
		switch {
		case seq < next:
			return Result{
				Outcome:    OutcomeForceDisconnect,
				LogoutText: "Logon MsgSeqNum too low",
			}, nil
		}
	} else {
		// The initiator's own sequence numbers were already reset in
		// sendLogon before this response arrived; only the incoming side
		// needs setting here, to treat this response as MsgSeqNum 1.
		if err := s.SetNextIncoming(2); err != nil {
			return Result{}, err
		}
	}

	setHeartBtIntSeconds(s, heartBtInt)
	return continueWith(), nil
}

// handleLogonRequest implements the acceptor-side rule: build and return the
// Logon response the engine sends before transitioning to Active. Comp ID
// validation happens upstream in the engine's inbound pipeline (spec.md
// §4.7 step 2), before this handler ever runs; no credentials are checked.
func handleLogonRequest(s Session, msg *fix.Message, resetFlag bool, heartBtInt int) (Result, error) {
	resp := s.NewOutbound(fix.MsgTypeLogon)
	resp.Set(fix.TagEncryptMethod, "0")
	resp.Set(fix.TagHeartBtInt, strconv.Itoa(heartBtInt))

	if resetFlag || s.ResetSeqNumOnLogon() {
		if err := s.ResetSequenceNumbers(); err != nil {
			return Result{}, err
		}
		resp.Set(fix.TagResetSeqNumFlag, "Y")
	}

	setHeartBtIntSeconds(s, heartBtInt)
	return continueWith(resp), nil
}

func mustGet(msg *fix.Message, tag int) string {
	v, _ := msg.Get(tag)
	return v
}

// setHeartBtIntSeconds converts the wire's integer-seconds HeartBtInt into
// the Duration Session tracks internally.
func setHeartBtIntSeconds(s Session, seconds int) {
	s.SetHeartBtInt(time.Duration(seconds) * time.Second)
}
