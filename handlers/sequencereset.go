package handlers

import "github.com/wxcuop/pyfixmsg-plus/fix"

// SequenceResetHandler implements spec.md §4.5's SequenceReset (35=4) rule,
// covering both the GapFill (123=Y) and admin-reset (123 absent/N) forms —
// the decrease-without-PossDup rejection rule is identical for both, per
// the spec's "Same rejection rule for decrease without PossDup" note.
type SequenceResetHandler struct{}

func (SequenceResetHandler) Handle(s Session, msg *fix.Message) (Result, error) {
	newSeq, ok := msg.GetInt(fix.TagNewSeqNo)
	if !ok {
		return Result{
			Outcome:      OutcomeRejectAndContinue,
			RejectReason: fix.RejectRequiredTagMissing,
			RejectRefTag: fix.TagNewSeqNo,
			RejectText:   "SequenceReset missing NewSeqNo",
		}, nil
	}

	next := s.NextIncoming()
	switch {
	case newSeq < next:
		if msg.PossDup() {
			return continueWith(), nil
		}
		return Result{
			Outcome:      OutcomeRejectAndContinue,
			RejectReason: fix.RejectValueIncorrect,
			RejectRefTag: fix.TagNewSeqNo,
			RejectText:   "Sequence Reset attempted to decrease sequence number",
		}, nil
	case newSeq == next:
		return continueWith(), nil
	default:
		if err := s.SetNextIncoming(newSeq); err != nil {
			return Result{}, err
		}
		return continueWith(), nil
	}
}
