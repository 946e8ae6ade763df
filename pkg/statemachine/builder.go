package statemachine

// Builder assembles a Machine with a fluent API:
//
//	m, err := statemachine.NewBuilder[Status, Event, *Attempt]().
//		From(Pending).When(Send).To(Sent).Add().
//		Terminal(Failed).
//		Build()
type Builder[S, E comparable, D any] struct {
	machine *Machine[S, E, D]
	current *Transition[S, E, D]
	err     error
}

// NewBuilder creates an empty builder.
func NewBuilder[S, E comparable, D any]() *Builder[S, E, D] {
	return &Builder[S, E, D]{
		machine: &Machine[S, E, D]{
			transitions: make(map[S]map[E][]Transition[S, E, D]),
			terminal:    make(map[S]struct{}),
		},
	}
}

// From starts a new transition definition.
func (b *Builder[S, E, D]) From(state S) *Builder[S, E, D] {
	b.current = &Transition[S, E, D]{From: state}
	return b
}

// When sets the triggering event of the current transition.
func (b *Builder[S, E, D]) When(event E) *Builder[S, E, D] {
	if b.current != nil {
		b.current.Event = event
	}
	return b
}

// To sets the target state of the current transition.
func (b *Builder[S, E, D]) To(state S) *Builder[S, E, D] {
	if b.current != nil {
		b.current.To = state
	}
	return b
}

func (b *Builder[S, E, D]) WithGuard(guard Guard[S, E, D]) *Builder[S, E, D] {
	if b.current != nil && guard != nil {
		b.current.Guards = append(b.current.Guards, guard)
	}
	return b
}

func (b *Builder[S, E, D]) WithAction(action Action[S, E, D]) *Builder[S, E, D] {
	if b.current != nil && action != nil {
		b.current.Actions = append(b.current.Actions, action)
	}
	return b
}

// Add commits the current transition. Several transitions may share the same
// from/event pair; guards decide between them in definition order.
func (b *Builder[S, E, D]) Add() *Builder[S, E, D] {
	if b.current == nil {
		b.err = ErrIncompleteTransition
		return b
	}
	t := *b.current
	b.current = nil

	if _, ok := b.machine.transitions[t.From]; !ok {
		b.machine.transitions[t.From] = make(map[E][]Transition[S, E, D])
	}
	b.machine.transitions[t.From][t.Event] = append(b.machine.transitions[t.From][t.Event], t)
	return b
}

// Terminal marks states that accept no further events.
func (b *Builder[S, E, D]) Terminal(states ...S) *Builder[S, E, D] {
	for _, s := range states {
		b.machine.terminal[s] = struct{}{}
	}
	return b
}

// Build returns the machine, or the first error met while building. A
// transition out of a terminal state is an error.
func (b *Builder[S, E, D]) Build() (*Machine[S, E, D], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.current != nil {
		return nil, ErrIncompleteTransition
	}
	for s := range b.machine.terminal {
		if len(b.machine.transitions[s]) > 0 {
			return nil, ErrTerminalHasTransitions
		}
	}
	return b.machine, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder[S, E, D]) MustBuild() *Machine[S, E, D] {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
