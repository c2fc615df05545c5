package processor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/handlers"
)

type stubHandler struct{ called bool }

func (s *stubHandler) Handle(_ handlers.Session, _ *fix.Message) (handlers.Result, error) {
	s.called = true
	return handlers.Result{Outcome: handlers.OutcomeContinue}, nil
}

func TestDispatchRoutesRegisteredType(t *testing.T) {
	var appCalled bool
	p := New(fix.NewTagValueCodec(), func(_ handlers.Session, _ *fix.Message) (handlers.Result, error) {
		appCalled = true
		return handlers.Result{}, nil
	})

	stub := &stubHandler{}
	p.Register(fix.MsgTypeHeartbeat, stub)

	msg := fix.NewMessage()
	msg.Set(fix.TagMsgType, string(fix.MsgTypeHeartbeat))

	_, err := p.Dispatch(nil, msg)
	require.NoError(t, err)
	require.True(t, stub.called)
	require.False(t, appCalled)
}

func TestDispatchFallsBackToAppCallback(t *testing.T) {
	var gotType fix.MsgType
	p := New(fix.NewTagValueCodec(), func(_ handlers.Session, msg *fix.Message) (handlers.Result, error) {
		gotType = msg.MsgType()
		return handlers.Result{Outcome: handlers.OutcomeContinue}, nil
	})

	msg := fix.NewMessage()
	msg.Set(fix.TagMsgType, "D")

	_, err := p.Dispatch(nil, msg)
	require.NoError(t, err)
	require.Equal(t, fix.MsgType("D"), gotType)
}
