package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHappyPathInitiator(t *testing.T) {
	var events []Event
	m := New(func(old, new State, event Event) {
		events = append(events, event)
	})

	effect, err := m.Apply(EventStartInitiator)
	require.NoError(t, err)
	require.Equal(t, SideEffectOpenOutboundSocket, effect)
	require.Equal(t, Connecting, m.Current())

	effect, err = m.Apply(EventConnected)
	require.NoError(t, err)
	require.Equal(t, SideEffectSendLogon, effect)
	require.Equal(t, LogonInProgress, m.Current())

	effect, err = m.Apply(EventLogonAccepted)
	require.NoError(t, err)
	require.Equal(t, SideEffectStartHeartbeat, effect)
	require.Equal(t, Active, m.Current())

	require.True(t, CanSend(m.Current()))
	require.True(t, HeartbeatsRun(m.Current()))
	require.Equal(t, []Event{EventStartInitiator, EventConnected, EventLogonAccepted}, events)
}

func TestAcceptorPath(t *testing.T) {
	m := New()

	_, err := m.Apply(EventStartAcceptor)
	require.NoError(t, err)
	require.Equal(t, AwaitingLogon, m.Current())

	effect, err := m.Apply(EventLogonReceived)
	require.NoError(t, err)
	require.Equal(t, SideEffectSendLogonResponseStartHeartbeat, effect)
	require.Equal(t, Active, m.Current())
}

func TestInvalidTransitionRejectedAndIgnored(t *testing.T) {
	m := New()

	_, err := m.Apply(EventLogonAccepted)
	require.Error(t, err)

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	require.Equal(t, Disconnected, m.Current(), "state must be unchanged after a rejected transition")
}

func TestLogoutRoundTrip(t *testing.T) {
	m := New()
	mustApply(t, m, EventStartAcceptor)
	mustApply(t, m, EventLogonReceived)
	require.Equal(t, Active, m.Current())

	effect, err := m.Apply(EventLogoutReceived)
	require.NoError(t, err)
	require.Equal(t, SideEffectSendLogoutResponse, effect)
	require.Equal(t, LogoutInProgress, m.Current())

	effect, err = m.Apply(EventLogoutConfirmed)
	require.NoError(t, err)
	require.Equal(t, SideEffectCloseSocket, effect)
	require.Equal(t, Disconnected, m.Current())
	require.False(t, CanSend(m.Current()))
	require.False(t, HeartbeatsRun(m.Current()))
}

func TestReconnectCycle(t *testing.T) {
	m := New()
	mustApply(t, m, EventStartInitiator)

	_, err := m.Apply(EventConnectFailed)
	require.NoError(t, err)
	require.Equal(t, Reconnecting, m.Current())

	_, err = m.Apply(EventRetryAttempt)
	require.NoError(t, err)
	require.Equal(t, Connecting, m.Current())
}

func mustApply(t *testing.T, m *Machine, e Event) {
	t.Helper()
	_, err := m.Apply(e)
	require.NoError(t, err)
}
