package handlers

import (
	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/statemachine"
)

// LogoutHandler implements spec.md §4.5's Logout (35=5) rules: the same
// message means "initiate" the first time it's seen in Active and
// "confirm" the second time it's seen in LogoutInProgress.
type LogoutHandler struct{}

func (LogoutHandler) Handle(s Session, msg *fix.Message) (Result, error) {
	if s.StateMachine().Current() == statemachine.LogoutInProgress {
		s.NotifyLogoffWaiter()
		if _, err := s.StateMachine().Apply(statemachine.EventLogoutConfirmed); err != nil {
			return Result{}, err
		}
		return continueWith(), nil
	}

	if _, err := s.StateMachine().Apply(statemachine.EventLogoutReceived); err != nil {
		return Result{}, err
	}
	resp := s.NewOutbound(fix.MsgTypeLogout)
	s.NotifyLogoffWaiter()
	return continueWith(resp), nil
}
