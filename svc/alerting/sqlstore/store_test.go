package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/ratelimit"
	"github.com/xpertseller/alertkit/svc/alerting"
	"github.com/xpertseller/alertkit/svc/alerting/alertingtest"
	"github.com/xpertseller/alertkit/svc/alerting/sqlstore"
)

func newSQLiteStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := sqlstore.New(db, sqlstore.SQLite)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx, logger.Discard()))
	return store
}

func TestSQLiteLedger(t *testing.T) {
	t.Parallel()
	alertingtest.LedgerTests(t, func(t *testing.T) alerting.Ledger {
		return newSQLiteStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	assert.NoError(t, store.Migrate(context.Background(), logger.Discard()))
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := sqlstore.New(nil, sqlstore.SQLite)
	assert.ErrorIs(t, err, sqlstore.ErrNilDB)

	db, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = sqlstore.New(db, sqlstore.Dialect("oracle"))
	assert.ErrorIs(t, err, sqlstore.ErrUnknownDialect)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	t.Parallel()
	_, err := sqlstore.OpenSQLite(context.Background(), " ")
	assert.Error(t, err)
}

func TestServiceOnSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newSQLiteStore(t)

	templates := alerting.NewMemoryTemplates(alerting.Template{
		ID:      "stock-low",
		Subject: "Stock low",
		Body:    "Only {{units}} units left",
		Urgency: alerting.UrgencyNormal,
	})
	recipients := alerting.NewMemoryDirectory(alerting.Recipient{ID: "seller-1", DisplayName: "Seller"})
	rates := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = rates.Close() })

	registry, err := alerting.NewRegistry(alerting.DefaultChannels()...)
	require.NoError(t, err)

	svc, err := alerting.NewService(alerting.Dependencies{
		Registry:  registry,
		Ledger:    store,
		Templates: templates,
		Directory: recipients,
		Transports: alerting.Transports{
			alerting.ChannelDashboard: alerting.TransportFunc(func(context.Context, alerting.SendRequest) (alerting.SendResponse, error) {
				return alerting.SendResponse{ProviderMessageID: "dash-1"}, nil
			}),
		},
		RateStore: rates,
	}, alerting.WithLogger(logger.Discard()))
	require.NoError(t, err)

	res, err := svc.SendAlert(ctx, alerting.SendAlertRequest{
		RecipientID: "seller-1",
		TemplateID:  "stock-low",
		Variables:   map[string]any{"units": 3},
		Channels:    []alerting.ChannelType{alerting.ChannelDashboard},
	})
	require.NoError(t, err)
	require.Len(t, res.Attempts, 1)

	view, err := svc.GetAlert(ctx, res.AlertID)
	require.NoError(t, err)
	assert.Equal(t, alerting.AlertCompleted, view.Alert.Status)
	require.Len(t, view.Attempts, 1)
	assert.Equal(t, "dash-1", view.Attempts[0].ProviderMessageID)
	assert.Equal(t, float64(3), view.Alert.Variables["units"])
}

func TestServiceOnSQLite_ChainOrderWithFrozenClock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newSQLiteStore(t)

	frozen := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rejected := alerting.TransportFunc(func(context.Context, alerting.SendRequest) (alerting.SendResponse, error) {
		return alerting.SendResponse{}, errors.New("rejected")
	})
	rates := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = rates.Close() })

	// One recipient per run so cooldowns never skip a channel.
	const runs = 5
	directory := alerting.NewMemoryDirectory()
	for i := range runs {
		directory.Put(alerting.Recipient{
			ID: fmt.Sprintf("seller-%d", i),
			Contacts: map[alerting.ChannelType]string{
				alerting.ChannelEmail:    "ops@example.com",
				alerting.ChannelWhatsApp: "+15550001111",
				alerting.ChannelSMS:      "+15550001111",
			},
		})
	}

	svc, err := alerting.NewService(alerting.Dependencies{
		Registry: alerting.MustNewRegistry(alerting.DefaultChannels()...),
		Ledger:   store,
		Templates: alerting.NewMemoryTemplates(alerting.Template{
			ID: "stock-low", Subject: "Stock low", Body: "Restock soon", Urgency: alerting.UrgencyNormal,
		}),
		Directory: directory,
		Transports: alerting.Transports{
			alerting.ChannelEmail:    rejected,
			alerting.ChannelWhatsApp: rejected,
			alerting.ChannelSMS:      rejected,
			alerting.ChannelDashboard: alerting.TransportFunc(func(context.Context, alerting.SendRequest) (alerting.SendResponse, error) {
				return alerting.SendResponse{ProviderMessageID: "dash-1"}, nil
			}),
		},
		RateStore: rates,
	}, alerting.WithLogger(logger.Discard()), alerting.WithClock(func() time.Time { return frozen }))
	require.NoError(t, err)

	for i := range runs {
		res, err := svc.SendAlert(ctx, alerting.SendAlertRequest{
			RecipientID: fmt.Sprintf("seller-%d", i),
			TemplateID:  "stock-low",
			Channels: []alerting.ChannelType{
				alerting.ChannelEmail, alerting.ChannelWhatsApp, alerting.ChannelSMS, alerting.ChannelDashboard,
			},
		})
		require.NoError(t, err)
		require.Len(t, res.Attempts, 4)

		view, err := svc.GetAlert(ctx, res.AlertID)
		require.NoError(t, err)
		got := make([]alerting.ChannelType, 0, len(view.Attempts))
		for _, a := range view.Attempts {
			got = append(got, a.Channel)
		}
		assert.Equal(t, res.Channels, got)
		assert.Equal(t, alerting.ChannelDashboard, got[len(got)-1])
	}
}
