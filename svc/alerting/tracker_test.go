package alerting_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/svc/alerting"
)

func seedAttempt(t *testing.T, l alerting.Ledger, id string, ch alerting.ChannelType, status alerting.AttemptStatus, created time.Time) {
	t.Helper()
	a := alerting.DeliveryAttempt{
		ID:          id,
		AlertID:     "alert-" + id,
		RecipientID: "seller-1",
		Channel:     ch,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	at := created
	switch status {
	case alerting.AttemptClicked:
		a.ClickedAt = &at
		fallthrough
	case alerting.AttemptOpened:
		a.OpenedAt = &at
		fallthrough
	case alerting.AttemptDelivered:
		a.DeliveredAt = &at
		fallthrough
	case alerting.AttemptSent:
		a.SentAt = &at
	case alerting.AttemptFailed:
		a.FailedAt = &at
	}
	require.NoError(t, l.CreateAlert(context.Background(), alerting.Alert{
		ID: a.AlertID, RecipientID: "seller-1", Status: alerting.AlertCompleted, CreatedAt: created,
	}))
	require.NoError(t, l.RecordAttempt(context.Background(), a))
}

func TestTracker_Stats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := t0.Add(30 * 24 * time.Hour)
	ledger := alerting.NewMemoryLedger()
	recent := now.Add(-24 * time.Hour)

	seedAttempt(t, ledger, "e1", alerting.ChannelEmail, alerting.AttemptClicked, recent)
	seedAttempt(t, ledger, "e2", alerting.ChannelEmail, alerting.AttemptDelivered, recent)
	seedAttempt(t, ledger, "e3", alerting.ChannelEmail, alerting.AttemptSent, recent)
	seedAttempt(t, ledger, "e4", alerting.ChannelEmail, alerting.AttemptFailed, recent)
	seedAttempt(t, ledger, "w1", alerting.ChannelWhatsApp, alerting.AttemptOpened, recent)
	seedAttempt(t, ledger, "s1", alerting.ChannelSMS, alerting.AttemptDelivered, recent)
	seedAttempt(t, ledger, "d1", alerting.ChannelDashboard, alerting.AttemptFailed, recent)
	seedAttempt(t, ledger, "old", alerting.ChannelSlack, alerting.AttemptClicked, now.Add(-10*24*time.Hour))

	tr := alerting.NewTracker(ledger, alerting.WithTrackerClock(func() time.Time { return now }))

	stats, err := tr.Stats(ctx, "seller-1", 7)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), stats.Since, "window starts at UTC midnight six days back")
	assert.Equal(t, 7, stats.TotalAlerts)
	assert.Equal(t, 7, stats.Attempts)
	assert.Equal(t, 5, stats.Sent)
	assert.Equal(t, 4, stats.Delivered)
	assert.Equal(t, 2, stats.Opened)
	assert.Equal(t, 1, stats.Clicked)
	assert.Equal(t, 2, stats.Failed)
	assert.InDelta(t, 0.8, stats.DeliveryRate, 1e-9)
	assert.InDelta(t, 0.5, stats.OpenRate, 1e-9)
	assert.InDelta(t, 0.5, stats.ClickRate, 1e-9)

	email := stats.ChannelPerformance[alerting.ChannelEmail]
	assert.Equal(t, 4, email.Attempts)
	assert.Equal(t, 3, email.Sent)
	assert.InDelta(t, 2.0/3.0, email.DeliveryRate, 1e-9)
	assert.InDelta(t, 0.5, email.OpenRate, 1e-9)
	assert.InDelta(t, 1.0, email.ClickRate, 1e-9)

	dash := stats.ChannelPerformance[alerting.ChannelDashboard]
	assert.Zero(t, dash.DeliveryRate, "zero denominators give zero rates")

	assert.NotContains(t, stats.ChannelPerformance, alerting.ChannelSlack, "attempts outside the window are ignored")
	assert.Equal(t, []alerting.ChannelType{
		alerting.ChannelWhatsApp, // open rate 1
		alerting.ChannelEmail,    // open rate 0.5
		alerting.ChannelSMS,      // open rate 0
	}, stats.PreferredChannels)

	again, err := tr.Stats(ctx, "seller-1", 7)
	require.NoError(t, err)
	assert.Equal(t, stats, again)
}

func TestTracker_StatsWindowBoundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 4, 9, 23, 59, 0, 0, time.UTC)
	since := time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)
	ledger := alerting.NewMemoryLedger()
	seedAttempt(t, ledger, "in", alerting.ChannelEmail, alerting.AttemptDelivered, since)
	seedAttempt(t, ledger, "out", alerting.ChannelSMS, alerting.AttemptDelivered, since.Add(-time.Nanosecond))

	stats, err := alerting.NewTracker(ledger, alerting.WithTrackerClock(func() time.Time { return now })).
		Stats(ctx, "seller-1", 1)
	require.NoError(t, err)
	assert.Equal(t, since, stats.Since)
	assert.Equal(t, 1, stats.TotalAlerts)
	assert.Contains(t, stats.ChannelPerformance, alerting.ChannelEmail)
	assert.NotContains(t, stats.ChannelPerformance, alerting.ChannelSMS)

	later, err := alerting.NewTracker(ledger, alerting.WithTrackerClock(func() time.Time { return now.Add(2 * time.Minute) })).
		Stats(ctx, "seller-1", 1)
	require.NoError(t, err)
	assert.Equal(t, since.Add(24*time.Hour), later.Since, "the window rolls over at UTC midnight")
	assert.Zero(t, later.TotalAlerts)
}

func TestTracker_StatsRealClockIsRepeatable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := alerting.NewMemoryLedger()
	seedAttempt(t, ledger, "e1", alerting.ChannelEmail, alerting.AttemptOpened, time.Now().Add(-time.Hour))
	tr := alerting.NewTracker(ledger)

	first, err := tr.Stats(ctx, "seller-1", 7)
	require.NoError(t, err)
	second, err := tr.Stats(ctx, "seller-1", 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Since.Equal(first.Since.Truncate(24*time.Hour)), "since falls on a day boundary")
}

func TestTracker_StatsEmpty(t *testing.T) {
	t.Parallel()

	stats, err := alerting.NewTracker(alerting.NewMemoryLedger()).Stats(context.Background(), "nobody", 30)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAlerts)
	assert.Zero(t, stats.DeliveryRate)
	assert.Empty(t, stats.ChannelPerformance)
	assert.NotNil(t, stats.PreferredChannels)
}

func TestTracker_StatsValidation(t *testing.T) {
	t.Parallel()

	tr := alerting.NewTracker(alerting.NewMemoryLedger())
	_, err := tr.Stats(context.Background(), "seller-1", 0)
	assert.ErrorIs(t, err, alerting.ErrValidation)
	_, err = tr.Stats(context.Background(), "", 7)
	assert.ErrorIs(t, err, alerting.ErrValidation)
}
