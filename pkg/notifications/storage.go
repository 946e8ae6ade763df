package notifications

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidNotification  = errors.New("notification requires id and recipient id")
)

// Storage persists inbox notifications.
type Storage interface {
	Create(ctx context.Context, n Notification) error
	Get(ctx context.Context, recipientID, id string) (*Notification, error)
	List(ctx context.Context, recipientID string, opts ListOptions) ([]Notification, error)

	// MarkRead marks the given notifications read at `at` and returns the
	// ones that were unread before the call.
	MarkRead(ctx context.Context, recipientID string, at time.Time, ids ...string) ([]Notification, error)

	CountUnread(ctx context.Context, recipientID string, now time.Time) (int, error)
}

// ListOptions filters and paginates List.
type ListOptions struct {
	Limit      int // 0 = no limit
	Offset     int
	OnlyUnread bool
	Now        time.Time // expiry reference; zero means time.Now()
}
