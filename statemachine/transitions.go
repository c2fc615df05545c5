package statemachine

// SideEffect names the action the Session Engine (C7) must perform after a
// transition commits, per the "Side effect" column of spec.md §4.2's table.
// The state machine itself never opens sockets or starts timers; it only
// tells the caller what to do.
type SideEffect int

const (
	SideEffectNone SideEffect = iota
	SideEffectOpenOutboundSocket
	SideEffectBindAndListen
	SideEffectSendLogon
	SideEffectScheduleRetry
	SideEffectSendLogonResponseStartHeartbeat
	SideEffectStartHeartbeat
	SideEffectCloseSocket
	SideEffectSendLogout
	SideEffectSendLogoutResponse
	SideEffectCloseSocketStopTimers
	SideEffectForceClose
	SideEffectReopenSocket
	SideEffectAbandon
)

type row struct {
	to     State
	effect SideEffect
}

// table is the authoritative transition table of spec.md §4.2. Anything not
// listed here is an invalid transition.
var table = map[State]map[Event]row{
	Disconnected: {
		EventStartInitiator: {Connecting, SideEffectOpenOutboundSocket},
		EventStartAcceptor:  {AwaitingLogon, SideEffectBindAndListen},
		EventRetryEnabled:   {Reconnecting, SideEffectScheduleRetry},
	},
	Connecting: {
		EventConnected:     {LogonInProgress, SideEffectSendLogon},
		EventConnectFailed: {Reconnecting, SideEffectScheduleRetry},
	},
	AwaitingLogon: {
		EventLogonReceived: {Active, SideEffectSendLogonResponseStartHeartbeat},
	},
	LogonInProgress: {
		EventLogonAccepted: {Active, SideEffectStartHeartbeat},
		EventLogonRejected: {Disconnected, SideEffectCloseSocket},
		EventLogonTimeout:  {Disconnected, SideEffectCloseSocket},
	},
	Active: {
		EventLogoutRequested: {LogoutInProgress, SideEffectSendLogout},
		EventLogoutReceived:  {LogoutInProgress, SideEffectSendLogoutResponse},
		EventNetworkError:    {Disconnected, SideEffectCloseSocketStopTimers},
		EventFatalError:      {Disconnected, SideEffectCloseSocketStopTimers},
	},
	LogoutInProgress: {
		EventLogoutConfirmed: {Disconnected, SideEffectCloseSocket},
		EventLogoutTimeout:   {Disconnected, SideEffectForceClose},
	},
	Reconnecting: {
		EventRetryAttempt:      {Connecting, SideEffectReopenSocket},
		EventMaxRetriesReached: {Disconnected, SideEffectAbandon},
	},
}

// CanSend reports whether spec.md §3 invariant 3 permits transmitting a
// non-Logon/Logout application message in state s.
func CanSend(s State) bool {
	return s == Active
}

// HeartbeatsRun reports whether spec.md §3 invariant 4 requires the
// heartbeat/TestRequest timers to be running in state s.
func HeartbeatsRun(s State) bool {
	return s == Active
}
