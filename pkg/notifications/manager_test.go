package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/broadcast"
	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/notifications"
)

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, n notifications.Notification) error {
	return m.Called(ctx, n).Error(0)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestManager_Send(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores and delivers", func(t *testing.T) {
		t.Parallel()
		storage := notifications.NewMemoryStorage()
		deliverer := &MockDeliverer{}
		deliverer.On("Deliver", mock.Anything, mock.MatchedBy(func(n notifications.Notification) bool {
			return n.RecipientID == "r1" && n.ID != ""
		})).Return(nil).Once()

		m := notifications.NewManager(storage, deliverer, notifications.WithManagerClock(clock))
		n, err := m.Send(ctx, notifications.Notification{RecipientID: "r1", Title: "Stock low"})
		require.NoError(t, err)
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, fixedNow, n.CreatedAt)

		stored, err := m.Get(ctx, "r1", n.ID)
		require.NoError(t, err)
		assert.Equal(t, "Stock low", stored.Title)
		deliverer.AssertExpectations(t)
	})

	t.Run("delivery failure is not fatal", func(t *testing.T) {
		t.Parallel()
		deliverer := &MockDeliverer{}
		deliverer.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("offline"))

		m := notifications.NewManager(notifications.NewMemoryStorage(), deliverer,
			notifications.WithManagerLogger(logger.Discard()))
		_, err := m.Send(ctx, notifications.Notification{RecipientID: "r1"})
		assert.NoError(t, err)
	})

	t.Run("storage failure is returned", func(t *testing.T) {
		t.Parallel()
		m := notifications.NewManager(notifications.NewMemoryStorage(), nil)
		_, err := m.Send(ctx, notifications.Notification{})
		assert.ErrorIs(t, err, notifications.ErrInvalidNotification)
	})
}

func TestManager_MarkReadRunsHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var read []string
	m := notifications.NewManager(notifications.NewMemoryStorage(), nil,
		notifications.WithManagerClock(clock),
		notifications.WithReadHook(func(_ context.Context, n notifications.Notification) {
			read = append(read, n.AttemptID)
		}),
	)

	n, err := m.Send(ctx, notifications.Notification{RecipientID: "r1", AttemptID: "att-1"})
	require.NoError(t, err)

	count, err := m.CountUnread(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, m.MarkRead(ctx, "r1", n.ID))
	require.NoError(t, m.MarkRead(ctx, "r1", n.ID))
	assert.Equal(t, []string{"att-1"}, read, "hook runs once per unread->read change")

	count, err = m.CountUnread(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTopicDeliverer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	topics := broadcast.NewTopics[notifications.Notification]()
	t.Cleanup(func() { _ = topics.Close() })
	d := notifications.NewTopicDeliverer(topics)

	sub, err := d.Subscribe(ctx, "r1")
	require.NoError(t, err)

	m := notifications.NewManager(notifications.NewMemoryStorage(), d)
	sent, err := m.Send(ctx, notifications.Notification{RecipientID: "r1", Title: "hello"})
	require.NoError(t, err)

	select {
	case msg := <-sub.Receive(ctx):
		assert.Equal(t, sent.ID, msg.Data.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not pushed")
	}
}
