// Package statemachine implements the enumerated session states and the
// transition table gating operations, per spec.md §4.2 (C2).
package statemachine

import (
	"sync"
	"sync/atomic"
)

// State is one of the session lifecycle states of spec.md §3.
type State uint32

const (
	Disconnected State = iota
	Connecting
	AwaitingLogon
	LogonInProgress
	Active
	LogoutInProgress
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case AwaitingLogon:
		return "AwaitingLogon"
	case LogonInProgress:
		return "LogonInProgress"
	case Active:
		return "Active"
	case LogoutInProgress:
		return "LogoutInProgress"
	case Reconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// Event names the transitions of spec.md §4.2's table.
type Event string

const (
	EventStartInitiator    Event = "start(initiator)"
	EventStartAcceptor     Event = "start(acceptor)"
	EventConnected         Event = "connected"
	EventConnectFailed     Event = "connectFailed"
	EventLogonReceived     Event = "logonReceived"
	EventLogonAccepted     Event = "logonAccepted"
	EventLogonRejected     Event = "logonRejected"
	EventLogonTimeout      Event = "timeout(logon)"
	EventLogoutRequested   Event = "logoutRequested"
	EventLogoutReceived    Event = "logoutReceived"
	EventNetworkError      Event = "networkError"
	EventFatalError        Event = "fatalError"
	EventLogoutConfirmed   Event = "logoutConfirmed"
	EventLogoutTimeout     Event = "timeout(logout)"
	EventRetryEnabled      Event = "retryEnabled"
	EventRetryAttempt      Event = "retryAttempt"
	EventMaxRetriesReached Event = "maxRetriesReached"
)

// Machine holds the current State behind an atomic word (grounded on the
// teacher's node/state.go nodeState, which uses atomic.LoadUint32/
// StoreUint32 rather than a mutex since only the value, not any associated
// side effect, needs to be linearizable) plus a listener list for the
// observer pattern spec.md §9 names.
type Machine struct {
	state     uint32
	mu        sync.Mutex // serializes Apply so side effects and listener fan-out stay ordered
	listeners []Listener
}

// Listener receives (old, new, event) on every committed transition.
// Registration is static, at construction, per spec.md §9 to avoid races.
type Listener func(old, new State, event Event)

// New returns a Machine starting in Disconnected, per spec.md §3.
func New(listeners ...Listener) *Machine {
	return &Machine{state: uint32(Disconnected), listeners: listeners}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return State(atomic.LoadUint32(&m.state))
}

// Apply attempts the transition table entry for (current state, event). On
// success it commits the new state and fans the event out to listeners,
// then returns the SideEffect the caller must perform. On an invalid
// transition it returns an *InvalidTransitionError and leaves state
// untouched; Apply itself does not log, and what to do with the error is
// left to the caller.
func (m *Machine) Apply(event Event) (SideEffect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.Current()
	row, ok := table[from][event]
	if !ok {
		return SideEffectNone, &InvalidTransitionError{From: from, Event: event}
	}

	atomic.StoreUint32(&m.state, uint32(row.to))

	for _, l := range m.listeners {
		l(from, row.to, event)
	}

	return row.effect, nil
}

// InvalidTransitionError is returned by Apply for an (state, event) pair
// absent from the transition table.
type InvalidTransitionError struct {
	From  State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return "statemachine: invalid transition: " + e.From.String() + " on " + string(e.Event)
}
