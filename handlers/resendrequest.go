package handlers

import (
	"strconv"

	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/store"
)

// BuildResendRequest constructs a ResendRequest(35=2) for [from, to].
// to=0 means "through latest", per spec.md §4.1/§4.5.
func BuildResendRequest(s Session, from, to int) *fix.Message {
	m := s.NewOutbound(fix.MsgTypeResendRequest)
	m.Set(fix.TagBeginSeqNo, strconv.Itoa(from))
	m.Set(fix.TagEndSeqNo, strconv.Itoa(to))
	return m
}

// ResendRequestHandler implements spec.md §4.5's ResendRequest (35=2) rule.
// It needs the wire codec to inspect the MsgType of previously stored
// outbound records, since store.StoredRecord only carries raw bytes.
type ResendRequestHandler struct {
	Codec fix.Codec
}

// resendableAdminTypes are administrative MsgTypes that must never be
// retransmitted verbatim during a resend; they are coalesced into gap-fills
// instead, per spec.md §4.5.
var resendableAdminTypes = map[fix.MsgType]bool{
	fix.MsgTypeHeartbeat:     true,
	fix.MsgTypeTestRequest:   true,
	fix.MsgTypeResendRequest: true,
	fix.MsgTypeReject:        true,
	fix.MsgTypeSequenceReset: true,
	fix.MsgTypeLogout:        true,
	fix.MsgTypeLogon:         true,
}

func (h ResendRequestHandler) Handle(s Session, msg *fix.Message) (Result, error) {
	begin, _ := msg.GetInt(fix.TagBeginSeqNo)
	end, _ := msg.GetInt(fix.TagEndSeqNo)
	if end == 0 {
		end = s.NextOutgoing() - 1
	}

	var responses []*fix.Message
	gapOpen := false
	gapStart := 0

	flushGap := func(resumeAt int) {
		if !gapOpen {
			return
		}
		gf := s.NewOutbound(fix.MsgTypeSequenceReset)
		gf.Set(fix.TagGapFillFlag, "Y")
		gf.Set(fix.TagPossDupFlag, "Y")
		gf.Set(fix.TagMsgSeqNum, strconv.Itoa(gapStart))
		gf.Set(fix.TagNewSeqNo, strconv.Itoa(resumeAt))
		responses = append(responses, gf)
		gapOpen = false
	}

	for seq := begin; seq <= end; seq++ {
		rec, err := s.Store().Get(s.ID(), seq, store.Outbound)
		if err != nil {
			if !store.IsNotFound(err) {
				return Result{}, err
			}
			if !gapOpen {
				gapOpen, gapStart = true, seq
			}
			continue
		}

		parsed, err := h.Codec.Decode(rec.Raw)
		if err != nil || resendableAdminTypes[parsed.MsgType()] {
			if !gapOpen {
				gapOpen, gapStart = true, seq
			}
			continue
		}

		flushGap(seq)

		replay := parsed.Clone()
		origSendingTime, _ := replay.Get(fix.TagSendingTime)
		replay.Set(fix.TagPossDupFlag, "Y")
		replay.Set(fix.TagOrigSendingTime, origSendingTime)
		replay.Set(fix.TagSendingTime, s.Now().UTC().Format("20060102-15:04:05.000"))
		responses = append(responses, replay)
	}
	flushGap(end + 1)

	return Result{Outcome: OutcomeContinue, Responses: responses}, nil
}
