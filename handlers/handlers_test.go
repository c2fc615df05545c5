package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/statemachine"
	"github.com/wxcuop/pyfixmsg-plus/store"
)

type fakeSession struct {
	id           fix.SessionID
	initiator    bool
	st           *statemachine.Machine
	s            store.Store
	nextIn       int
	nextOut      int
	heartBtInt   time.Duration
	resetOnLogon bool
	pendingTest  string
	waiterHits   int
	now          time.Time
}

func newFakeSession(initiator bool) *fakeSession {
	return &fakeSession{
		id:        fix.SessionID{BeginString: "FIX.4.4", SenderCompID: "BANZAI", TargetCompID: "EXEC"},
		initiator: initiator,
		st:        statemachine.New(),
		s:         store.NewMemoryStore(),
		nextIn:    1,
		nextOut:   1,
		now:       time.Now(),
	}
}

func (f *fakeSession) ID() fix.SessionID                  { return f.id }
func (f *fakeSession) IsInitiator() bool                  { return f.initiator }
func (f *fakeSession) Store() store.Store                 { return f.s }
func (f *fakeSession) StateMachine() *statemachine.Machine { return f.st }
func (f *fakeSession) NextIncoming() int                  { return f.nextIn }
func (f *fakeSession) NextOutgoing() int                  { return f.nextOut }
func (f *fakeSession) SetNextIncoming(n int) error        { f.nextIn = n; return nil }
func (f *fakeSession) SetNextOutgoing(n int) error         { f.nextOut = n; return nil }
func (f *fakeSession) ResetSequenceNumbers() error         { f.nextIn, f.nextOut = 1, 1; return nil }
func (f *fakeSession) HeartBtInt() time.Duration           { return f.heartBtInt }
func (f *fakeSession) SetHeartBtInt(d time.Duration)       { f.heartBtInt = d }
func (f *fakeSession) ResetSeqNumOnLogon() bool            { return f.resetOnLogon }
func (f *fakeSession) NotifyLogoffWaiter()                 { f.waiterHits++ }
func (f *fakeSession) Now() time.Time                      { return f.now }

func (f *fakeSession) NewOutbound(msgType fix.MsgType) *fix.Message {
	m := fix.NewMessage()
	m.Set(fix.TagBeginString, f.id.BeginString)
	m.Set(fix.TagMsgType, string(msgType))
	m.Set(fix.TagSenderCompID, f.id.SenderCompID)
	m.Set(fix.TagTargetCompID, f.id.TargetCompID)
	m.Set(fix.TagSendingTime, f.now.UTC().Format("20060102-15:04:05.000"))
	return m
}

func (f *fakeSession) ClearTestRequest(id string) bool {
	if f.pendingTest != "" && f.pendingTest == id {
		f.pendingTest = ""
		return true
	}
	return false
}

func TestLogonAcceptorResetsOnRequestFlag(t *testing.T) {
	s := newFakeSession(false)
	s.nextIn, s.nextOut = 5, 7

	req := fix.NewMessage()
	req.Set(fix.TagResetSeqNumFlag, "Y")
	req.Set(fix.TagHeartBtInt, "30")

	res, err := LogonHandler{}.Handle(s, req)
	require.NoError(t, err)
	require.Equal(t, OutcomeContinue, res.Outcome)
	require.Len(t, res.Responses, 1)
	v, ok := res.Responses[0].Get(fix.TagResetSeqNumFlag)
	require.True(t, ok)
	require.Equal(t, "Y", v)
	require.Equal(t, 1, s.nextIn)
	require.Equal(t, 1, s.nextOut)
	require.Equal(t, 30*time.Second, s.heartBtInt)
}

// A Logon response with a higher MsgSeqNum is left for the engine's
// generic seq-gap switch to resend against, so the handler itself just
// continues without emitting its own ResendRequest.
func TestLogonInitiatorHigherSeqContinuesWithoutResend(t *testing.T) {
	s := newFakeSession(true)
	s.nextIn = 1

	resp := fix.NewMessage()
	resp.Set(fix.TagMsgSeqNum, "3")
	resp.Set(fix.TagHeartBtInt, "30")

	res, err := LogonHandler{}.Handle(s, resp)
	require.NoError(t, err)
	require.Equal(t, OutcomeContinue, res.Outcome)
	require.Empty(t, res.Responses)
}

func TestLogonInitiatorLowerSeqForcesDisconnect(t *testing.T) {
	s := newFakeSession(true)
	s.nextIn = 5

	resp := fix.NewMessage()
	resp.Set(fix.TagMsgSeqNum, "3")
	resp.Set(fix.TagHeartBtInt, "30")

	res, err := LogonHandler{}.Handle(s, resp)
	require.NoError(t, err)
	require.Equal(t, OutcomeForceDisconnect, res.Outcome)
}

func TestHeartbeatClearsTestReqID(t *testing.T) {
	s := newFakeSession(true)
	s.pendingTest = "tr-1"

	hb := fix.NewMessage()
	hb.Set(fix.TagTestReqID, "tr-1")

	_, err := HeartbeatHandler{}.Handle(s, hb)
	require.NoError(t, err)
	require.Empty(t, s.pendingTest)
}

func TestTestRequestEchoesID(t *testing.T) {
	s := newFakeSession(true)
	req := fix.NewMessage()
	req.Set(fix.TagTestReqID, "abc")

	res, err := TestRequestHandler{}.Handle(s, req)
	require.NoError(t, err)
	require.Len(t, res.Responses, 1)
	id, ok := res.Responses[0].Get(fix.TagTestReqID)
	require.True(t, ok)
	require.Equal(t, "abc", id)
}

func TestSequenceResetRejectsDecreaseWithoutPossDup(t *testing.T) {
	s := newFakeSession(false)
	s.nextIn = 20

	msg := fix.NewMessage()
	msg.Set(fix.TagMsgSeqNum, "20")
	msg.Set(fix.TagNewSeqNo, "15")

	res, err := SequenceResetHandler{}.Handle(s, msg)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejectAndContinue, res.Outcome)
	require.Equal(t, fix.RejectValueIncorrect, res.RejectReason)
	require.Equal(t, fix.TagNewSeqNo, res.RejectRefTag)
	require.Equal(t, 20, s.nextIn, "nextIncoming must not decrease")
}

func TestSequenceResetIgnoresDecreaseWithPossDup(t *testing.T) {
	s := newFakeSession(false)
	s.nextIn = 20

	msg := fix.NewMessage()
	msg.Set(fix.TagNewSeqNo, "15")
	msg.Set(fix.TagPossDupFlag, "Y")

	res, err := SequenceResetHandler{}.Handle(s, msg)
	require.NoError(t, err)
	require.Equal(t, OutcomeContinue, res.Outcome)
	require.Equal(t, 20, s.nextIn)
}

func TestSequenceResetAdvancesOnIncrease(t *testing.T) {
	s := newFakeSession(false)
	s.nextIn = 5

	msg := fix.NewMessage()
	msg.Set(fix.TagNewSeqNo, "9")

	res, err := SequenceResetHandler{}.Handle(s, msg)
	require.NoError(t, err)
	require.Equal(t, OutcomeContinue, res.Outcome)
	require.Equal(t, 9, s.nextIn)
}

func TestLogoutRoundTripViaHandler(t *testing.T) {
	s := newFakeSession(false)
	s.st = statemachine.New()
	_, err := s.st.Apply(statemachine.EventStartAcceptor)
	require.NoError(t, err)
	_, err = s.st.Apply(statemachine.EventLogonReceived)
	require.NoError(t, err)
	require.Equal(t, statemachine.Active, s.st.Current())

	res, err := LogoutHandler{}.Handle(s, fix.NewMessage())
	require.NoError(t, err)
	require.Len(t, res.Responses, 1)
	require.Equal(t, statemachine.LogoutInProgress, s.st.Current())
	require.Equal(t, 1, s.waiterHits)

	res, err = LogoutHandler{}.Handle(s, fix.NewMessage())
	require.NoError(t, err)
	require.Empty(t, res.Responses)
	require.Equal(t, statemachine.Disconnected, s.st.Current())
	require.Equal(t, 2, s.waiterHits)
}

func TestResendRequestCoalescesGapsAndReplaysApplicationMessages(t *testing.T) {
	s := newFakeSession(false)
	codec := fix.NewTagValueCodec()
	h := ResendRequestHandler{Codec: codec}

	put := func(seq int, msgType fix.MsgType) {
		m := fix.NewMessage()
		m.Set(fix.TagBeginString, "FIX.4.4")
		m.Set(fix.TagMsgType, string(msgType))
		m.Set(fix.TagMsgSeqNum, itoaLocal(seq))
		m.Set(fix.TagSenderCompID, "BANZAI")
		m.Set(fix.TagTargetCompID, "EXEC")
		m.Set(fix.TagSendingTime, "20260101-00:00:00.000")
		raw, err := codec.Encode(m)
		require.NoError(t, err)
		require.NoError(t, s.s.Store(s.id, seq, store.Outbound, raw, s.now))
	}

	put(5, "D")
	put(6, fix.MsgTypeHeartbeat)
	put(7, "D")
	s.nextOut = 8

	req := fix.NewMessage()
	req.Set(fix.TagBeginSeqNo, "5")
	req.Set(fix.TagEndSeqNo, "7")

	res, err := h.Handle(s, req)
	require.NoError(t, err)
	require.Len(t, res.Responses, 3)

	require.Equal(t, "D", string(res.Responses[0].MsgType()))
	pd, _ := res.Responses[0].Get(fix.TagPossDupFlag)
	require.Equal(t, "Y", pd)

	require.Equal(t, fix.MsgTypeSequenceReset, res.Responses[1].MsgType())
	gf, _ := res.Responses[1].Get(fix.TagGapFillFlag)
	require.Equal(t, "Y", gf)
	newSeq, _ := res.Responses[1].Get(fix.TagNewSeqNo)
	require.Equal(t, "7", newSeq)

	require.Equal(t, "D", string(res.Responses[2].MsgType()))
}

func itoaLocal(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
