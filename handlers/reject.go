package handlers

import (
	"strconv"

	"github.com/wxcuop/pyfixmsg-plus/fix"
)

// BuildReject constructs a Reject(35=3) per spec.md §4.7 step 1 and the
// scenario in §8.6: RefSeqNum(45) identifies the offending message,
// RefTagID(371) the specific tag at fault, SessionRejectReason(373) the
// category, and Text(58) a human-readable explanation.
func BuildReject(s Session, refSeqNum int, refTag int, reason fix.SessionRejectReason, text string) *fix.Message {
	m := s.NewOutbound(fix.MsgTypeReject)
	m.Set(fix.TagRefSeqNum, strconv.Itoa(refSeqNum))
	if refTag != 0 {
		m.Set(fix.TagRefTagID, strconv.Itoa(refTag))
	}
	m.Set(fix.TagSessionRejReason, strconv.Itoa(int(reason)))
	m.Set(fix.TagText, text)
	return m
}

// RejectHandler implements spec.md §4.5's Reject (35=3) rule: log for audit
// and never retransmit. Nothing further to do — the engine's generic
// inbound pipeline persists the message before this handler runs and
// advances nextIncoming after it returns.
type RejectHandler struct{}

func (RejectHandler) Handle(s Session, msg *fix.Message) (Result, error) {
	return continueWith(), nil
}
