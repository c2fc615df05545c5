package session

import "github.com/wxcuop/pyfixmsg-plus/statemachine"

// InvalidStateError is returned by Send when called outside Active, and by
// SetSequenceNumbers when called after Start, per spec.md §4.7's "Fails
// with InvalidState otherwise" contract.
type InvalidStateError struct {
	Operation string
	State     statemachine.State
}

func (e *InvalidStateError) Error() string {
	return "session: " + e.Operation + " invalid in state " + e.State.String()
}
