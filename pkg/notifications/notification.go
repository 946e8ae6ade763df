package notifications

import "time"

// Priority mirrors alert urgency for display ordering in the inbox.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is an in-app message shown on a recipient's dashboard.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id"`
	AlertID     string     `json:"alert_id,omitempty"`
	AttemptID   string     `json:"attempt_id,omitempty"`
	Priority    Priority   `json:"priority"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Read        bool       `json:"read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the notification expired at or before now.
func (n Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}
