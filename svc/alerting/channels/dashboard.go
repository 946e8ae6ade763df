package channels

import (
	"context"
	"strings"
	"time"

	"github.com/xpertseller/alertkit/pkg/notifications"
	"github.com/xpertseller/alertkit/svc/alerting"
)

// Dashboard stores alerts as in-app notifications and pushes them to live
// subscribers. The address is the recipient id.
type Dashboard struct {
	manager *notifications.Manager
	ttl     time.Duration
	clock   func() time.Time
}

type DashboardOption func(*Dashboard)

// WithNotificationTTL expires notifications after ttl. Zero keeps them.
func WithNotificationTTL(ttl time.Duration) DashboardOption {
	return func(d *Dashboard) { d.ttl = ttl }
}

func WithDashboardClock(clock func() time.Time) DashboardOption {
	return func(d *Dashboard) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func NewDashboard(manager *notifications.Manager, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{manager: manager, clock: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dashboard) Send(ctx context.Context, req alerting.SendRequest) (alerting.SendResponse, error) {
	if strings.TrimSpace(req.Address) == "" {
		return alerting.SendResponse{}, ErrInvalidAddress
	}
	n := notifications.Notification{
		RecipientID: req.Address,
		AlertID:     req.AlertID,
		AttemptID:   req.AttemptID,
		Priority:    priorityFor(req.Urgency),
		Title:       req.Content.Subject,
		Message:     req.Content.Body,
	}
	if d.ttl > 0 {
		exp := d.clock().Add(d.ttl)
		n.ExpiresAt = &exp
	}

	saved, err := d.manager.Send(ctx, n)
	if err != nil {
		return alerting.SendResponse{}, err
	}
	return alerting.SendResponse{ProviderMessageID: saved.ID}, nil
}

func priorityFor(u alerting.Urgency) notifications.Priority {
	switch u {
	case alerting.UrgencyCritical:
		return notifications.PriorityCritical
	case alerting.UrgencyHigh:
		return notifications.PriorityHigh
	case alerting.UrgencyLow:
		return notifications.PriorityLow
	default:
		return notifications.PriorityNormal
	}
}
