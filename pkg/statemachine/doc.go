// Package statemachine provides a generic finite state machine.
//
// A Machine is an immutable transition table built with Builder. Because it
// stores no current state, one Machine can validate transitions for entities
// loaded from storage:
//
//	next, err := machine.Fire(ctx, attempt.Status, EventDelivered, attempt)
//
// Guards choose between transitions sharing a from/event pair; actions run
// before the state changes and abort it on error. Terminal states reject
// every event with ErrTerminalState.
package statemachine
