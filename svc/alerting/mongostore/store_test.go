package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/mongo"
	"github.com/xpertseller/alertkit/svc/alerting"
	"github.com/xpertseller/alertkit/svc/alerting/mongostore"
)

// newStore connects to MONGODB_URL and isolates each test in its own
// database. Tests are skipped when no server is configured.
func newStore(t *testing.T) *mongostore.Store {
	t.Helper()
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "alertkit_test_" + uuid.NewString()[:8],
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    4,
		RetryAttempts:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	store := mongostore.New(db)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestStore_Templates(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetTemplate(ctx, "missing")
	assert.ErrorIs(t, err, alerting.ErrTemplateNotFound)

	tpl := alerting.Template{ID: "t1", Subject: "s", Body: "b", Urgency: alerting.UrgencyLow}
	require.NoError(t, store.PutTemplate(ctx, tpl))
	tpl.Body = "updated"
	require.NoError(t, store.PutTemplate(ctx, tpl))

	got, err := store.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Body)
}

func TestStore_Recipients(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetRecipientContext(ctx, "missing")
	assert.ErrorIs(t, err, alerting.ErrRecipientNotFound)

	require.NoError(t, store.PutRecipient(ctx, alerting.Recipient{
		ID:       "r1",
		Contacts: map[alerting.ChannelType]string{alerting.ChannelEmail: "a@example.com"},
	}))
	got, err := store.GetRecipientContext(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Contact(alerting.ChannelEmail))
}

func TestStore_TopRecommendations(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	for _, r := range []alerting.Recommendation{
		{Title: "low", Score: 0.1},
		{Title: "high", Score: 0.9},
		{Title: "mid", Score: 0.5},
	} {
		require.NoError(t, store.AddRecommendation(ctx, "r1", r))
	}
	require.NoError(t, store.AddRecommendation(ctx, "r2", alerting.Recommendation{Title: "other", Score: 1}))

	got, err := store.TopRecommendations(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].Title)
	assert.Equal(t, "mid", got[1].Title)

	got, err = store.TopRecommendations(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
