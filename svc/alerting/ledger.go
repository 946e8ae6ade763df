package alerting

import (
	"context"
	"time"
)

// Ledger persists alerts and delivery attempts.
//
// Implementations return ErrAlertNotFound and ErrAttemptNotFound for missing
// rows and ErrAlreadyExists for duplicate ids. Times are stored with at least
// millisecond precision.
type Ledger interface {
	CreateAlert(ctx context.Context, a Alert) error
	GetAlert(ctx context.Context, id string) (Alert, error)
	// TransitionAlert moves the alert from one status to another only if it
	// is currently in from. It reports whether the change was applied.
	TransitionAlert(ctx context.Context, id string, from, to AlertStatus, at time.Time) (bool, error)
	// DueAlerts lists pending alerts scheduled at or before now, oldest first.
	DueAlerts(ctx context.Context, now time.Time, limit int) ([]Alert, error)
	CountAlerts(ctx context.Context, recipientID string, since time.Time) (int, error)

	// RecordAttempt returns ErrAlreadyExists when the ID or the alert's
	// plan step (AlertID, Sequence) is already recorded.
	RecordAttempt(ctx context.Context, a DeliveryAttempt) error
	GetAttempt(ctx context.Context, id string) (DeliveryAttempt, error)
	FindAttemptByProviderMessageID(ctx context.Context, providerMessageID string) (DeliveryAttempt, error)
	// UpdateAttempt replaces the attempt only if its stored status equals
	// expected, and returns ErrConcurrentUpdate otherwise.
	UpdateAttempt(ctx context.Context, a DeliveryAttempt, expected AttemptStatus) error
	ListAttempts(ctx context.Context, alertID string) ([]DeliveryAttempt, error)
	// QueryAttempts lists a recipient's attempts created at or after since.
	QueryAttempts(ctx context.Context, recipientID string, since time.Time) ([]DeliveryAttempt, error)
}
