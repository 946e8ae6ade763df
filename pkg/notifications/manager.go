package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xpertseller/alertkit/pkg/logger"
)

// ReadHook is called for each notification that becomes read.
type ReadHook func(ctx context.Context, n Notification)

// Manager stores inbox notifications and pushes them to live clients.
type Manager struct {
	storage   Storage
	deliverer Deliverer
	onRead    []ReadHook
	clock     func() time.Time
	logger    *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithReadHook registers a callback invoked after notifications are marked read.
func WithReadHook(h ReadHook) ManagerOption {
	return func(m *Manager) {
		if h != nil {
			m.onRead = append(m.onRead, h)
		}
	}
}

func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager creates a manager. A nil deliverer disables live push.
func NewManager(storage Storage, deliverer Deliverer, opts ...ManagerOption) *Manager {
	if deliverer == nil {
		deliverer = NoOpDeliverer{}
	}
	m := &Manager{
		storage:   storage,
		deliverer: deliverer,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddReadHook registers a read callback after construction.
func (m *Manager) AddReadHook(h ReadHook) {
	if h != nil {
		m.onRead = append(m.onRead, h)
	}
}

// Send stores n and then pushes it to live clients. Push failures are logged
// and do not fail Send because the notification is already persisted.
func (m *Manager) Send(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.clock()
	}

	if err := m.storage.Create(ctx, n); err != nil {
		return n, fmt.Errorf("failed to store notification: %w", err)
	}

	if err := m.deliverer.Deliver(ctx, n); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "notification stored but live push failed",
			slog.String("notification_id", n.ID),
			logger.RecipientID(n.RecipientID),
			logger.Error(err),
		)
	}
	return n, nil
}

func (m *Manager) Get(ctx context.Context, recipientID, id string) (*Notification, error) {
	return m.storage.Get(ctx, recipientID, id)
}

func (m *Manager) List(ctx context.Context, recipientID string, opts ListOptions) ([]Notification, error) {
	if opts.Now.IsZero() {
		opts.Now = m.clock()
	}
	return m.storage.List(ctx, recipientID, opts)
}

// MarkRead marks notifications read and runs read hooks for the ones that
// changed state.
func (m *Manager) MarkRead(ctx context.Context, recipientID string, ids ...string) error {
	changed, err := m.storage.MarkRead(ctx, recipientID, m.clock(), ids...)
	if err != nil {
		return err
	}
	for _, n := range changed {
		for _, hook := range m.onRead {
			hook(ctx, n)
		}
	}
	return nil
}

func (m *Manager) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return m.storage.CountUnread(ctx, recipientID, m.clock())
}
