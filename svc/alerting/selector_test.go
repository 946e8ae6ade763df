package alerting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/svc/alerting"
)

func TestSelector_Select(t *testing.T) {
	t.Parallel()

	sel := alerting.NewSelector(alerting.MustNewRegistry(alerting.DefaultChannels()...))
	prefs := []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelWhatsApp}

	tests := []struct {
		name    string
		urgency alerting.Urgency
		prefs   []alerting.ChannelType
		want    []alerting.ChannelType
	}{
		{
			name:    "critical takes every preferred channel",
			urgency: alerting.UrgencyCritical,
			prefs:   prefs,
			want:    []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelWhatsApp, alerting.ChannelDashboard},
		},
		{
			name:    "low takes the most preferred channel",
			urgency: alerting.UrgencyLow,
			prefs:   prefs,
			want:    []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelDashboard},
		},
		{
			name:    "normal follows preference order not priority",
			urgency: alerting.UrgencyNormal,
			prefs:   []alerting.ChannelType{alerting.ChannelSMS, alerting.ChannelEmail},
			want:    []alerting.ChannelType{alerting.ChannelSMS, alerting.ChannelDashboard},
		},
		{
			name:    "high takes the two highest priority channels",
			urgency: alerting.UrgencyHigh,
			prefs:   []alerting.ChannelType{alerting.ChannelSlack, alerting.ChannelSMS, alerting.ChannelEmail},
			want:    []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelSMS, alerting.ChannelDashboard},
		},
		{
			name:    "unknown and duplicate preferences are ignored",
			urgency: alerting.UrgencyCritical,
			prefs:   []alerting.ChannelType{"pager", alerting.ChannelSlack, alerting.ChannelSlack, alerting.ChannelDashboard},
			want:    []alerting.ChannelType{alerting.ChannelSlack, alerting.ChannelDashboard},
		},
		{
			name:    "no preferences fall back to enabled channels",
			urgency: alerting.UrgencyNormal,
			want:    []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelDashboard},
		},
		{
			name:    "critical without preferences uses every external channel",
			urgency: alerting.UrgencyCritical,
			want: []alerting.ChannelType{
				alerting.ChannelEmail, alerting.ChannelWhatsApp, alerting.ChannelSMS,
				alerting.ChannelTelegram, alerting.ChannelSlack, alerting.ChannelDashboard,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sel.Select(tt.urgency, tt.prefs))
		})
	}
}

func TestSelector_SelectSkipsDisabled(t *testing.T) {
	t.Parallel()

	channels := alerting.DefaultChannels()
	channels[0].Enabled = false // email
	sel := alerting.NewSelector(alerting.MustNewRegistry(channels...))

	got := sel.Select(alerting.UrgencyLow, []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelWhatsApp})
	assert.Equal(t, []alerting.ChannelType{alerting.ChannelWhatsApp, alerting.ChannelDashboard}, got)
}

func TestSelector_Explicit(t *testing.T) {
	t.Parallel()

	channels := alerting.DefaultChannels()
	channels[2].Enabled = false // sms
	sel := alerting.NewSelector(alerting.MustNewRegistry(channels...))

	selected, disabled, err := sel.Explicit([]alerting.ChannelType{
		alerting.ChannelDashboard, alerting.ChannelSMS, alerting.ChannelEmail, alerting.ChannelEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, []alerting.ChannelType{alerting.ChannelEmail, alerting.ChannelDashboard}, selected)
	assert.Equal(t, []alerting.ChannelType{alerting.ChannelSMS}, disabled)

	_, _, err = sel.Explicit([]alerting.ChannelType{alerting.ChannelEmail, "fax"})
	assert.ErrorIs(t, err, alerting.ErrValidation)
	assert.ErrorIs(t, err, alerting.ErrUnknownChannel)
}
