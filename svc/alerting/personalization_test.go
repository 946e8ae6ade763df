package alerting_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/svc/alerting"
)

var (
	longChannel  = alerting.Channel{Type: alerting.ChannelEmail, Format: alerting.FormatLong}
	shortChannel = alerting.Channel{Type: alerting.ChannelSMS, Format: alerting.FormatShort, MaxLength: 60}
)

type staticRecommendations struct {
	recs []alerting.Recommendation
	err  error
}

func (s staticRecommendations) TopRecommendations(_ context.Context, _ string, limit int) ([]alerting.Recommendation, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.recs) > limit {
		return s.recs[:limit], nil
	}
	return s.recs, nil
}

func newEngine(opts ...alerting.EngineOption) *alerting.Engine {
	return alerting.NewEngine(append([]alerting.EngineOption{alerting.WithEngineLogger(logger.Discard())}, opts...)...)
}

func TestEngine_Validate(t *testing.T) {
	t.Parallel()

	e := newEngine()
	tmpl := alerting.Template{
		ID:                "t",
		Body:              "{{asin}} for {{first_name}}",
		RequiredVariables: []string{"asin", "first_name", "marketplace"},
	}

	err := e.Validate(tmpl, map[string]any{"asin": "B1"}, alerting.Recipient{DisplayName: "ada"})
	require.Error(t, err)

	var verr *alerting.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "variables.marketplace", verr.Fields[0].Field)

	assert.NoError(t, e.Validate(tmpl, map[string]any{"asin": "B1", "marketplace": "US"}, alerting.Recipient{DisplayName: "ada"}))
}

func TestEngine_Render(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	morning := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("substitution with recipient keys", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{Subject: "Hi {{first_name}}", Body: "Stock for {{ sku }} is {{qty}}."},
			Variables: map[string]any{"sku": "SKU-1", "qty": 3},
			Recipient: alerting.Recipient{ID: "r1", DisplayName: "ada lovelace"},
			Channel:   longChannel,
			Now:       morning,
		})
		require.NoError(t, err)
		assert.Equal(t, "Hi Ada", c.Subject)
		assert.Equal(t, "Stock for SKU-1 is 3.", c.Body)
		assert.False(t, c.Degraded)
	})

	t.Run("explicit variables win", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template:  alerting.Template{Body: "{{name}}"},
			Variables: map[string]any{"name": "Store Team"},
			Recipient: alerting.Recipient{DisplayName: "ada"},
			Channel:   longChannel,
		})
		require.NoError(t, err)
		assert.Equal(t, "Store Team", c.Body)
	})

	t.Run("missing required variable", func(t *testing.T) {
		t.Parallel()
		_, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{Body: "{{asin}}", RequiredVariables: []string{"asin"}},
			Channel:  longChannel,
		})
		assert.ErrorIs(t, err, alerting.ErrValidation)
	})

	t.Run("unresolved optional placeholder degrades", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template:  alerting.Template{Subject: "Order {{order_id}}", Body: "Order {{order_id}} for {{name}} is late."},
			Recipient: alerting.Recipient{DisplayName: "Ada"},
			Channel:   longChannel,
		})
		require.NoError(t, err)
		assert.True(t, c.Degraded)
		assert.NotContains(t, c.Body, "{{")
		assert.Contains(t, c.Body, "for Ada is late.")
		assert.Equal(t, "Order", c.Subject)
	})

	t.Run("context greeting and summary on long channels", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Body:            "Your buy box dropped.",
				Personalization: alerting.Personalization{IncludeContext: true},
			},
			Recipient: alerting.Recipient{DisplayName: "ada lovelace", PerformanceSummary: "sales up 4% this week"},
			Channel:   longChannel,
			Now:       morning,
		})
		require.NoError(t, err)
		assert.Equal(t, "Good morning, Ada,\n\nYour buy box dropped.\n\nRecent performance: sales up 4% this week", c.Body)
	})

	t.Run("greeting follows recipient timezone", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Body:            "x",
				Personalization: alerting.Personalization{IncludeContext: true},
			},
			Recipient: alerting.Recipient{Timezone: "America/New_York"},
			Channel:   longChannel,
			Now:       time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(c.Body, "Good evening,\n\n"), c.Body)
	})

	t.Run("urgent tone", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Subject:         "Account health",
				Body:            "Please review and respond now.",
				Personalization: alerting.Personalization{Tone: alerting.ToneUrgent},
			},
			Channel: longChannel,
		})
		require.NoError(t, err)
		assert.Equal(t, "[URGENT] Account health", c.Subject)
		assert.Equal(t, "Please REVIEW and RESPOND NOW.", c.Body)
	})

	t.Run("critical urgency defaults to urgent tone", func(t *testing.T) {
		t.Parallel()
		tmpl := alerting.Template{Subject: "Account health", Body: "Please review now."}

		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: tmpl, Channel: longChannel, Urgency: alerting.UrgencyCritical,
		})
		require.NoError(t, err)
		assert.Equal(t, "[URGENT] Account health", c.Subject)
		assert.Equal(t, "Please REVIEW NOW.", c.Body)

		c, err = newEngine().Render(ctx, alerting.RenderRequest{
			Template: tmpl, Channel: longChannel, Urgency: alerting.UrgencyHigh,
		})
		require.NoError(t, err)
		assert.Equal(t, "Account health", c.Subject)

		tmpl.Personalization.Tone = alerting.ToneProfessional
		c, err = newEngine().Render(ctx, alerting.RenderRequest{
			Template: tmpl, Channel: longChannel, Urgency: alerting.UrgencyCritical,
		})
		require.NoError(t, err)
		assert.Equal(t, "Account health", c.Subject, "an explicit tone wins over urgency")
	})

	t.Run("recipient tone overrides template tone", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Body:            "All good.\n\nNothing to do",
				Personalization: alerting.Personalization{Tone: alerting.ToneUrgent},
			},
			Recipient: alerting.Recipient{Tone: alerting.ToneFriendly},
			Channel:   longChannel,
		})
		require.NoError(t, err)
		assert.Equal(t, "All good. 🙂\n\nNothing to do", c.Body)
	})

	t.Run("recommendations", func(t *testing.T) {
		t.Parallel()
		src := staticRecommendations{recs: []alerting.Recommendation{
			{Title: "Lower price", Detail: "match the buy box"},
			{Title: "Restock"},
			{Title: "Add images"},
			{Title: "Never shown"},
		}}
		c, err := newEngine(alerting.WithRecommendations(src)).Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Body:            "Sales fell.",
				Personalization: alerting.Personalization{IncludeRecommendations: true},
			},
			Channel: longChannel,
		})
		require.NoError(t, err)
		assert.Equal(t, "Sales fell.\n\nRecommended next steps:\n1. Lower price: match the buy box\n2. Restock\n3. Add images", c.Body)
	})

	t.Run("failing recommendations are ignored", func(t *testing.T) {
		t.Parallel()
		src := staticRecommendations{err: alerting.ErrRecommendationsDown}
		c, err := newEngine(alerting.WithRecommendations(src)).Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Body:            "Sales fell.",
				Personalization: alerting.Personalization{IncludeRecommendations: true},
			},
			Channel: longChannel,
		})
		require.NoError(t, err)
		assert.Equal(t, "Sales fell.", c.Body)
		assert.False(t, c.Degraded)
	})

	t.Run("short channel folds subject strips markup and truncates", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Subject: "Price alert",
				Body:    "<p>Your <b>price</b> on {{asin}} is no longer competitive against three other sellers.</p>",
			},
			Variables: map[string]any{"asin": "B1"},
			Channel:   shortChannel,
		})
		require.NoError(t, err)
		assert.Empty(t, c.Subject)
		assert.True(t, strings.HasPrefix(c.Body, "Price alert\n\nYour price on B1"), c.Body)
		assert.NotContains(t, c.Body, "<")
		assert.LessOrEqual(t, len([]rune(c.Body)), 60)
		assert.True(t, strings.HasSuffix(c.Body, "…"))
	})

	t.Run("short channel omits business context", func(t *testing.T) {
		t.Parallel()
		c, err := newEngine().Render(ctx, alerting.RenderRequest{
			Template: alerting.Template{
				Body:            "Check stock.",
				Personalization: alerting.Personalization{IncludeContext: true},
			},
			Recipient: alerting.Recipient{DisplayName: "Ada", PerformanceSummary: "sales up"},
			Channel:   alerting.Channel{Type: alerting.ChannelSMS, Format: alerting.FormatShort},
			Now:       morning,
		})
		require.NoError(t, err)
		assert.Equal(t, "Good morning, Ada,\n\nCheck stock.", c.Body)
	})
}
