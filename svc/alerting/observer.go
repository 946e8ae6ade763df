package alerting

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	EventAttemptRecorded EventType = "attempt.recorded"
	EventAttemptUpdated  EventType = "attempt.updated"
	EventAlertCompleted  EventType = "alert.completed"
)

// Event is published to observers after the ledger changes.
type Event struct {
	Type       EventType        `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Alert      *Alert           `json:"alert,omitempty"`
	Attempt    *DeliveryAttempt `json:"attempt,omitempty"`
}

// Observer receives ledger events. Observers are best effort: errors are
// logged by the caller and never fail a delivery.
type Observer interface {
	Observe(ctx context.Context, e Event) error
}

type ObserverFunc func(ctx context.Context, e Event) error

func (f ObserverFunc) Observe(ctx context.Context, e Event) error { return f(ctx, e) }

// Observers fans an event out to every observer and joins their errors.
type Observers []Observer

func (os Observers) Observe(ctx context.Context, e Event) error {
	var errs []error
	for _, o := range os {
		if err := o.Observe(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
