package statemachine

import (
	"context"
	"fmt"
	"slices"
)

// Action executes side effects during a transition. Returning an error
// prevents the transition.
type Action[S, E comparable, D any] func(ctx context.Context, from, to S, event E, data D) error

// Guard decides at runtime whether a transition may proceed.
type Guard[S, E comparable, D any] func(ctx context.Context, from S, event E, data D) bool

// Transition defines a state change triggered by an event.
type Transition[S, E comparable, D any] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E, D]  // all must pass
	Actions []Action[S, E, D] // run in order before the state changes
}

// Machine is an immutable transition table. It holds no current state, so a
// single Machine can drive any number of persisted entities concurrently.
type Machine[S, E comparable, D any] struct {
	transitions map[S]map[E][]Transition[S, E, D]
	terminal    map[S]struct{}
}

// Fire resolves the transition for event from current and returns the new
// state. The first transition whose guards all pass wins.
func (m *Machine[S, E, D]) Fire(ctx context.Context, current S, event E, data D) (S, error) {
	if m.IsTerminal(current) {
		return current, &ErrTerminalState{State: fmt.Sprint(current), Event: fmt.Sprint(event)}
	}

	candidates := m.transitions[current][event]
	if len(candidates) == 0 {
		return current, &ErrNoTransitionAvailable{State: fmt.Sprint(current), Event: fmt.Sprint(event)}
	}

	t, ok := firstAllowed(ctx, candidates, current, event, data)
	if !ok {
		return current, &ErrTransitionRejected{State: fmt.Sprint(current), Event: fmt.Sprint(event)}
	}

	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, current, t.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}
	return t.To, nil
}

// CanFire reports whether Fire would succeed, without running actions.
func (m *Machine[S, E, D]) CanFire(ctx context.Context, current S, event E, data D) bool {
	if m.IsTerminal(current) {
		return false
	}
	_, ok := firstAllowed(ctx, m.transitions[current][event], current, event, data)
	return ok
}

// IsTerminal reports whether no event may leave s.
func (m *Machine[S, E, D]) IsTerminal(s S) bool {
	_, ok := m.terminal[s]
	return ok
}

// Events lists the events defined from s, in no particular order.
func (m *Machine[S, E, D]) Events(from S) []E {
	events := make([]E, 0, len(m.transitions[from]))
	for _, ts := range m.transitions[from] {
		for _, t := range ts {
			if !slices.Contains(events, t.Event) {
				events = append(events, t.Event)
			}
		}
	}
	return events
}

func firstAllowed[S, E comparable, D any](ctx context.Context, ts []Transition[S, E, D], from S, event E, data D) (Transition[S, E, D], bool) {
	for _, t := range ts {
		passed := true
		for _, guard := range t.Guards {
			if guard != nil && !guard(ctx, from, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return t, true
		}
	}
	return Transition[S, E, D]{}, false
}
