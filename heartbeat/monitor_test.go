package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitorChallengesThenTimesOutOnSilence(t *testing.T) {
	clock := newFakeClock()
	m := newMonitor(time.Second, time.Second, clock.factory)
	go m.Start()
	defer m.Shutdown()

	clock.fire <- time.Now()
	<-m.Ticks()
	action, id := m.OnTick()
	require.Equal(t, ActionSendTestRequest, action)
	require.NotEmpty(t, id)
	require.Equal(t, id, m.Pending())

	clock.fire <- time.Now()
	<-m.Ticks()
	action, id2 := m.OnTick()
	require.Equal(t, ActionTimeout, action)
	require.Equal(t, id, id2)
}

func TestMonitorInboundMessageClearsChallenge(t *testing.T) {
	clock := newFakeClock()
	m := newMonitor(time.Second, time.Second, clock.factory)
	go m.Start()
	defer m.Shutdown()

	clock.fire <- time.Now()
	<-m.Ticks()
	_, _ = m.OnTick()
	require.NotEmpty(t, m.Pending())

	m.OnInboundMessage()
	require.Empty(t, m.Pending())
}

func TestSchedulerResetOnOutboundSend(t *testing.T) {
	clock := newFakeClock()
	s := newScheduler(time.Second, clock.factory)
	go s.Start()
	defer s.Shutdown()

	s.OnOutboundSent()

	select {
	case <-s.Ticks():
		t.Fatal("no tick expected immediately after reset")
	case <-time.After(50 * time.Millisecond):
	}

	clock.fire <- time.Now()
	select {
	case <-s.Ticks():
	case <-time.After(time.Second):
		t.Fatal("expected a tick after the clock fires")
	}
}
