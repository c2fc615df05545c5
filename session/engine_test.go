package session

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/internal/testutil"
	"github.com/wxcuop/pyfixmsg-plus/statemachine"
	"github.com/wxcuop/pyfixmsg-plus/transport"
)

// newEnginePair wires a live TCP initiator/acceptor pair on loopback, per
// spec.md §9's "the test suite must exercise the real transport, not only
// the in-memory pipe" requirement for the session layer.
func newEnginePair(t *testing.T) (initiator, acceptor *Engine) {
	t.Helper()

	acceptorLayer, err := transport.NewTCPStreamLayer("127.0.0.1:0", "")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(acceptorLayer.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	initiatorLayer, err := transport.NewTCPStreamLayer("127.0.0.1:0", "")
	require.NoError(t, err)

	codec := fix.NewTagValueCodec()

	acceptorCfg := TestConfig()
	acceptorCfg.BeginString = "FIX.4.2"
	acceptorCfg.SenderCompID = "ACCEPTOR"
	acceptorCfg.TargetCompID = "INITIATOR"
	acceptorCfg.ConnectionType = Acceptor
	acceptorCfg.Logger = testutil.NewTestLogger(t)

	initiatorCfg := TestConfig()
	initiatorCfg.BeginString = "FIX.4.2"
	initiatorCfg.SenderCompID = "INITIATOR"
	initiatorCfg.TargetCompID = "ACCEPTOR"
	initiatorCfg.ConnectionType = Initiator
	initiatorCfg.SocketConnectHost = host
	initiatorCfg.SocketConnectPort = port
	initiatorCfg.ResetSeqNumOnLogon = true
	initiatorCfg.Logger = testutil.NewTestLogger(t)

	acceptor, err = New(acceptorCfg, Callbacks{}, codec, acceptorLayer)
	require.NoError(t, err)
	initiator, err = New(initiatorCfg, Callbacks{}, codec, initiatorLayer)
	require.NoError(t, err)
	return initiator, acceptor
}

func waitForState(t *testing.T, e *Engine, want statemachine.State, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if e.StateMachine().Current() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached state %s, stuck at %s", e.ID(), want, e.StateMachine().Current())
}

// TestCleanLogonWithReset covers spec.md §8 scenario 1: an initiator with
// ResetSeqNumOnLogon connects, both sides exchange Logon(35=A) with
// 141=Y, and both land in Active with nextOutgoing advanced past the
// handshake message.
func TestCleanLogonWithReset(t *testing.T) {
	initiator, acceptor := newEnginePair(t)

	go acceptor.Start()
	go initiator.Start()
	t.Cleanup(func() {
		initiator.Disconnect(true)
		acceptor.Disconnect(true)
	})

	waitForState(t, initiator, statemachine.Active, 2*time.Second)
	waitForState(t, acceptor, statemachine.Active, 2*time.Second)

	require.Equal(t, 2, initiator.NextOutgoing())
	require.Equal(t, 2, acceptor.NextOutgoing())
	require.Equal(t, 2, initiator.NextIncoming())
	require.Equal(t, 2, acceptor.NextIncoming())
}

// TestHeartbeatCadence covers spec.md §8 scenario 2: once Active, an idle
// session emits Heartbeats on its own negotiated interval without any
// application traffic.
func TestHeartbeatCadence(t *testing.T) {
	initiator, acceptor := newEnginePair(t)

	go acceptor.Start()
	go initiator.Start()
	t.Cleanup(func() {
		initiator.Disconnect(true)
		acceptor.Disconnect(true)
	})

	waitForState(t, initiator, statemachine.Active, 2*time.Second)
	waitForState(t, acceptor, statemachine.Active, 2*time.Second)

	outBefore := initiator.NextOutgoing()
	time.Sleep(initiator.HeartBtInt() * 3)
	require.Greater(t, initiator.NextOutgoing(), outBefore, "expected at least one heartbeat to have been sent")
}

// TestApplicationSendRoundTrip covers spec.md §4.7's public Send: an
// application message is stamped, sequenced, persisted and delivered to
// the counterparty's onMessageFromApp callback.
func TestApplicationSendRoundTrip(t *testing.T) {
	initiator, acceptor := newEnginePair(t)

	received := make(chan *fix.Message, 1)
	acceptor.callbacks.OnMessageFromApp = func(msg *fix.Message, _ fix.SessionID) {
		received <- msg
	}

	go acceptor.Start()
	go initiator.Start()
	t.Cleanup(func() {
		initiator.Disconnect(true)
		acceptor.Disconnect(true)
	})

	waitForState(t, initiator, statemachine.Active, 2*time.Second)
	waitForState(t, acceptor, statemachine.Active, 2*time.Second)

	order := fix.NewMessage()
	order.Set(fix.TagMsgType, "D")
	require.NoError(t, initiator.Send(order))

	select {
	case msg := <-received:
		sender, _ := msg.Get(fix.TagSenderCompID)
		require.Equal(t, "INITIATOR", sender)
	case <-time.After(2 * time.Second):
		t.Fatal("acceptor never received the application message")
	}
}

// TestGracefulLogoff covers spec.md §8 scenario 5: RequestLogoff sends
// Logout, waits for the counterparty's confirmation, and both sides end in
// Disconnected.
func TestGracefulLogoff(t *testing.T) {
	initiator, acceptor := newEnginePair(t)

	go acceptor.Start()
	go initiator.Start()

	waitForState(t, initiator, statemachine.Active, 2*time.Second)
	waitForState(t, acceptor, statemachine.Active, 2*time.Second)

	require.NoError(t, initiator.RequestLogoff(2*time.Second))
	waitForState(t, initiator, statemachine.Disconnected, 2*time.Second)
	// the acceptor replied in-line and closes unilaterally once its own
	// LogoutTimeout grace period elapses (TestConfig sets it to 1s).
	waitForState(t, acceptor, statemachine.Disconnected, 3*time.Second)
}
