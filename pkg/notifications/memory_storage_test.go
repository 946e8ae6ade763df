package notifications_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/notifications"
)

func TestMemoryStorage_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()

	expired := fixedNow.Add(-time.Minute)
	for i, n := range []notifications.Notification{
		{ID: "a", RecipientID: "r1", CreatedAt: fixedNow.Add(-3 * time.Hour)},
		{ID: "b", RecipientID: "r1", CreatedAt: fixedNow.Add(-2 * time.Hour)},
		{ID: "c", RecipientID: "r1", CreatedAt: fixedNow.Add(-time.Hour), ExpiresAt: &expired},
		{ID: "d", RecipientID: "r2", CreatedAt: fixedNow},
	} {
		require.NoError(t, s.Create(ctx, n), "item %d", i)
	}

	list, err := s.List(ctx, "r1", notifications.ListOptions{Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID, "newest first")
	assert.Equal(t, "a", list[1].ID)

	page, err := s.List(ctx, "r1", notifications.ListOptions{Now: fixedNow, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)

	_, err = s.MarkRead(ctx, "r1", fixedNow, "b")
	require.NoError(t, err)
	unread, err := s.List(ctx, "r1", notifications.ListOptions{Now: fixedNow, OnlyUnread: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "a", unread[0].ID)

	_, err = s.Get(ctx, "r1", "missing")
	assert.ErrorIs(t, err, notifications.ErrNotificationNotFound)
}
