// Package alertingtest holds shared conformance tests for alerting.Ledger
// implementations.
package alertingtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/svc/alerting"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// LedgerTests runs the Ledger contract against ledgers built by newLedger.
// Each subtest gets a fresh ledger.
func LedgerTests(t *testing.T, newLedger func(t *testing.T) alerting.Ledger) {
	t.Helper()
	ctx := context.Background()

	t.Run("alerts round trip", func(t *testing.T) {
		l := newLedger(t)
		exp := base.Add(time.Hour)
		a := alerting.Alert{
			ID:            "a1",
			RecipientID:   "r1",
			TemplateID:    "tpl",
			Variables:     map[string]any{"asin": "B1"},
			Channels:      []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelDashboard},
			Urgency:       alerting.UrgencyHigh,
			BroadcastMode: true,
			ScheduledAt:   base,
			ExpiresAt:     &exp,
			Status:        alerting.AlertProcessing,
			CreatedAt:     base,
			UpdatedAt:     base,
		}
		require.NoError(t, l.CreateAlert(ctx, a))
		assert.ErrorIs(t, l.CreateAlert(ctx, a), alerting.ErrAlreadyExists)

		got, err := l.GetAlert(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, a.Channels, got.Channels)
		assert.Equal(t, "B1", got.Variables["asin"])
		assert.True(t, got.BroadcastMode)
		assert.Equal(t, alerting.UrgencyHigh, got.Urgency)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, exp.Equal(*got.ExpiresAt))
		assert.True(t, base.Equal(got.CreatedAt))

		_, err = l.GetAlert(ctx, "missing")
		assert.ErrorIs(t, err, alerting.ErrAlertNotFound)
	})

	t.Run("transition is compare and set", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.CreateAlert(ctx, alerting.Alert{
			ID: "a1", RecipientID: "r1", Status: alerting.AlertPending, ScheduledAt: base, CreatedAt: base,
		}))

		ok, err := l.TransitionAlert(ctx, "a1", alerting.AlertPending, alerting.AlertProcessing, base)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = l.TransitionAlert(ctx, "a1", alerting.AlertPending, alerting.AlertProcessing, base)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = l.TransitionAlert(ctx, "missing", alerting.AlertPending, alerting.AlertProcessing, base)
		assert.ErrorIs(t, err, alerting.ErrAlertNotFound)
	})

	t.Run("concurrent claims admit one", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.CreateAlert(ctx, alerting.Alert{
			ID: "a1", RecipientID: "r1", Status: alerting.AlertPending, ScheduledAt: base, CreatedAt: base,
		}))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := l.TransitionAlert(ctx, "a1", alerting.AlertPending, alerting.AlertProcessing, base)
				if err == nil && ok {
					mu.Lock()
					claimed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, claimed)
	})

	t.Run("due alerts", func(t *testing.T) {
		l := newLedger(t)
		for i, id := range []string{"late", "early", "future"} {
			at := base.Add(time.Duration(1-i) * time.Minute)
			if id == "future" {
				at = base.Add(time.Hour)
			}
			require.NoError(t, l.CreateAlert(ctx, alerting.Alert{
				ID: id, RecipientID: "r1", Status: alerting.AlertPending, ScheduledAt: at, CreatedAt: base,
			}))
		}
		require.NoError(t, l.CreateAlert(ctx, alerting.Alert{
			ID: "done", RecipientID: "r1", Status: alerting.AlertCompleted, ScheduledAt: base, CreatedAt: base,
		}))

		due, err := l.DueAlerts(ctx, base.Add(time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, "early", due[0].ID)
		assert.Equal(t, "late", due[1].ID)

		due, err = l.DueAlerts(ctx, base.Add(time.Minute), 1)
		require.NoError(t, err)
		assert.Len(t, due, 1)
	})

	t.Run("count alerts", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.CreateAlert(ctx, alerting.Alert{ID: "old", RecipientID: "r1", CreatedAt: base.Add(-48 * time.Hour)}))
		require.NoError(t, l.CreateAlert(ctx, alerting.Alert{ID: "new", RecipientID: "r1", CreatedAt: base}))
		require.NoError(t, l.CreateAlert(ctx, alerting.Alert{ID: "other", RecipientID: "r2", CreatedAt: base}))

		n, err := l.CountAlerts(ctx, "r1", base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("attempts", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.CreateAlert(ctx, alerting.Alert{ID: "a1", RecipientID: "r1", CreatedAt: base}))

		sent := base.Add(time.Second)
		first := alerting.DeliveryAttempt{
			ID: "t1", AlertID: "a1", RecipientID: "r1", Channel: alerting.ChannelEmail,
			Status: alerting.AttemptSent, ProviderMessageID: "pm-1", SentAt: &sent,
			CreatedAt: base, UpdatedAt: sent,
		}
		second := alerting.DeliveryAttempt{
			ID: "t2", AlertID: "a1", RecipientID: "r1", Channel: alerting.ChannelSMS, Sequence: 1,
			Status: alerting.AttemptFailed, FailureReason: "invalid number", FailedAt: &sent,
			CreatedAt: base.Add(time.Millisecond), UpdatedAt: sent,
		}
		require.NoError(t, l.RecordAttempt(ctx, first))
		require.NoError(t, l.RecordAttempt(ctx, second))
		assert.ErrorIs(t, l.RecordAttempt(ctx, first), alerting.ErrAlreadyExists)

		got, err := l.GetAttempt(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, alerting.AttemptSent, got.Status)
		require.NotNil(t, got.SentAt)
		assert.True(t, sent.Equal(*got.SentAt))
		assert.Nil(t, got.DeliveredAt)

		byPM, err := l.FindAttemptByProviderMessageID(ctx, "pm-1")
		require.NoError(t, err)
		assert.Equal(t, "t1", byPM.ID)

		_, err = l.FindAttemptByProviderMessageID(ctx, "nope")
		assert.ErrorIs(t, err, alerting.ErrAttemptNotFound)
		_, err = l.GetAttempt(ctx, "nope")
		assert.ErrorIs(t, err, alerting.ErrAttemptNotFound)

		list, err := l.ListAttempts(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "t1", list[0].ID)
		assert.Equal(t, "invalid number", list[1].FailureReason)

		since, err := l.QueryAttempts(ctx, "r1", base.Add(time.Millisecond))
		require.NoError(t, err)
		require.Len(t, since, 1)
		assert.Equal(t, "t2", since[0].ID)
	})

	t.Run("attempts keep plan order on timestamp ties", func(t *testing.T) {
		l := newLedger(t)
		plan := []alerting.ChannelType{
			alerting.ChannelEmail, alerting.ChannelWhatsApp, alerting.ChannelSMS, alerting.ChannelDashboard,
		}
		ids := []string{"zz", "aa", "mm", "bb"}
		for i := len(plan) - 1; i >= 0; i-- {
			require.NoError(t, l.RecordAttempt(ctx, alerting.DeliveryAttempt{
				ID: ids[i], AlertID: "a1", RecipientID: "r1", Channel: plan[i], Sequence: i,
				Status: alerting.AttemptFailed, CreatedAt: base, UpdatedAt: base,
			}))
		}

		list, err := l.ListAttempts(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, list, len(plan))
		for i, a := range list {
			assert.Equal(t, plan[i], a.Channel)
			assert.Equal(t, i, a.Sequence)
		}

		since, err := l.QueryAttempts(ctx, "r1", base)
		require.NoError(t, err)
		require.Len(t, since, len(plan))
		for i, a := range since {
			assert.Equal(t, plan[i], a.Channel)
		}
	})

	t.Run("one attempt per plan step", func(t *testing.T) {
		l := newLedger(t)
		a := alerting.DeliveryAttempt{
			ID: "t1", AlertID: "a1", RecipientID: "r1", Channel: alerting.ChannelEmail,
			Status: alerting.AttemptSent, CreatedAt: base, UpdatedAt: base,
		}
		require.NoError(t, l.RecordAttempt(ctx, a))

		dup := a
		dup.ID = "t2"
		assert.ErrorIs(t, l.RecordAttempt(ctx, dup), alerting.ErrAlreadyExists)

		dup.AlertID = "a2"
		require.NoError(t, l.RecordAttempt(ctx, dup), "steps are scoped to their alert")

		list, err := l.ListAttempts(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "t1", list[0].ID)
	})

	t.Run("update attempt checks expected status", func(t *testing.T) {
		l := newLedger(t)
		sent := base
		a := alerting.DeliveryAttempt{
			ID: "t1", AlertID: "a1", RecipientID: "r1", Channel: alerting.ChannelEmail,
			Status: alerting.AttemptSent, SentAt: &sent, CreatedAt: base, UpdatedAt: base,
		}
		require.NoError(t, l.RecordAttempt(ctx, a))

		delivered := base.Add(time.Minute)
		next := a
		next.Status = alerting.AttemptDelivered
		next.DeliveredAt = &delivered
		next.UpdatedAt = delivered

		assert.ErrorIs(t, l.UpdateAttempt(ctx, next, alerting.AttemptPending), alerting.ErrConcurrentUpdate)
		require.NoError(t, l.UpdateAttempt(ctx, next, alerting.AttemptSent))
		assert.ErrorIs(t, l.UpdateAttempt(ctx, next, alerting.AttemptSent), alerting.ErrConcurrentUpdate)

		got, err := l.GetAttempt(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, alerting.AttemptDelivered, got.Status)
		require.NotNil(t, got.DeliveredAt)
		assert.True(t, delivered.Equal(*got.DeliveredAt))

		missing := next
		missing.ID = "nope"
		assert.ErrorIs(t, l.UpdateAttempt(ctx, missing, alerting.AttemptSent), alerting.ErrAttemptNotFound)
	})
}
