package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/xpertseller/alertkit/pkg/statemachine"
)

// transitionData is the payload the attempt lifecycle actions mutate.
type transitionData struct {
	attempt *DeliveryAttempt
	at      time.Time
	reason  string
}

// attemptLifecycle allows forward jumps (sent -> opened) and a late failure
// after sent. Skipped timestamps are backfilled with the event time.
var attemptLifecycle = buildAttemptLifecycle()

func buildAttemptLifecycle() *statemachine.Machine[AttemptStatus, AttemptStatus, *transitionData] {
	forward := []AttemptStatus{AttemptPending, AttemptSent, AttemptDelivered, AttemptOpened, AttemptClicked}

	b := statemachine.NewBuilder[AttemptStatus, AttemptStatus, *transitionData]()
	for i, from := range forward {
		for _, to := range forward[i+1:] {
			b.From(from).When(to).To(to).WithAction(stampTimes).Add()
		}
	}
	b.From(AttemptPending).When(AttemptFailed).To(AttemptFailed).WithAction(stampFailure).Add()
	b.From(AttemptSent).When(AttemptFailed).To(AttemptFailed).WithAction(stampFailure).Add()

	return b.Terminal(AttemptFailed, AttemptClicked).MustBuild()
}

func stampTimes(_ context.Context, _, to AttemptStatus, _ AttemptStatus, d *transitionData) error {
	a := d.attempt
	set := func(p **time.Time) {
		if *p == nil {
			*p = ptr(d.at)
		}
	}
	switch to {
	case AttemptClicked:
		set(&a.ClickedAt)
		fallthrough
	case AttemptOpened:
		set(&a.OpenedAt)
		fallthrough
	case AttemptDelivered:
		set(&a.DeliveredAt)
		fallthrough
	case AttemptSent:
		set(&a.SentAt)
	}
	return nil
}

func stampFailure(_ context.Context, _, _ AttemptStatus, _ AttemptStatus, d *transitionData) error {
	d.attempt.FailedAt = ptr(d.at)
	if d.reason != "" {
		d.attempt.FailureReason = d.reason
	}
	return nil
}

// advanceAttempt applies a status change to a copy of a. Same-status events
// are reported as unchanged; every other invalid move is ErrInvalidTransition.
func advanceAttempt(ctx context.Context, a DeliveryAttempt, to AttemptStatus, at time.Time, reason string) (DeliveryAttempt, bool, error) {
	if a.Status == to {
		return a, false, nil
	}
	d := &transitionData{attempt: &a, at: at, reason: reason}
	next, err := attemptLifecycle.Fire(ctx, a.Status, to, d)
	if err != nil {
		return a, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = next
	a.UpdatedAt = at
	return a, true, nil
}
