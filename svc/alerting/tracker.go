package alerting

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
)

// ChannelStats are the funnel counters for one channel. A count includes
// every attempt that reached the stage, so Sent >= Delivered >= Opened.
type ChannelStats struct {
	Attempts     int     `json:"attempts"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Opened       int     `json:"opened"`
	Clicked      int     `json:"clicked"`
	Failed       int     `json:"failed"`
	DeliveryRate float64 `json:"delivery_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
}

func (s *ChannelStats) count(a DeliveryAttempt) {
	s.Attempts++
	if a.SentAt != nil {
		s.Sent++
	}
	if a.DeliveredAt != nil {
		s.Delivered++
	}
	if a.OpenedAt != nil {
		s.Opened++
	}
	if a.ClickedAt != nil {
		s.Clicked++
	}
	if a.Status == AttemptFailed {
		s.Failed++
	}
}

func (s *ChannelStats) computeRates() {
	s.DeliveryRate = ratio(s.Delivered, s.Sent)
	s.OpenRate = ratio(s.Opened, s.Delivered)
	s.ClickRate = ratio(s.Clicked, s.Opened)
}

// DeliveryStats aggregates a recipient's attempts over a trailing window.
// Since is the UTC midnight the window starts at, so repeated reads on the
// same day report the same window.
type DeliveryStats struct {
	RecipientID string    `json:"recipient_id"`
	WindowDays  int       `json:"window_days"`
	Since       time.Time `json:"since"`
	TotalAlerts int       `json:"total_alerts"`
	ChannelStats
	ChannelPerformance map[ChannelType]ChannelStats `json:"channel_performance"`
	PreferredChannels  []ChannelType                `json:"preferred_channels"`
}

// Tracker computes delivery analytics from the ledger. It never writes.
type Tracker struct {
	ledger Ledger
	clock  func() time.Time
}

type TrackerOption func(*Tracker)

func WithTrackerClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func NewTracker(ledger Ledger, opts ...TrackerOption) *Tracker {
	t := &Tracker{ledger: ledger, clock: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Stats returns delivery, open and click rates for recipientID over the
// last windowDays calendar days in UTC, today included. Rates with a zero denominator are 0.
// PreferredChannels lists channels with at least one sent attempt ranked by
// open rate, then delivered count, then name.
func (t *Tracker) Stats(ctx context.Context, recipientID string, windowDays int) (DeliveryStats, error) {
	if recipientID == "" {
		return DeliveryStats{}, newValidationError(nil, "recipient_id", "is required")
	}
	if windowDays <= 0 {
		return DeliveryStats{}, newValidationError(nil, "window_days", "must be positive, got %d", windowDays)
	}

	since := windowStart(t.clock(), windowDays)

	total, err := t.ledger.CountAlerts(ctx, recipientID, since)
	if err != nil {
		return DeliveryStats{}, fmt.Errorf("count alerts: %w", err)
	}
	attempts, err := t.ledger.QueryAttempts(ctx, recipientID, since)
	if err != nil {
		return DeliveryStats{}, fmt.Errorf("query attempts: %w", err)
	}

	stats := DeliveryStats{
		RecipientID:        recipientID,
		WindowDays:         windowDays,
		Since:              since,
		TotalAlerts:        total,
		ChannelPerformance: make(map[ChannelType]ChannelStats),
		PreferredChannels:  []ChannelType{},
	}
	for _, a := range attempts {
		stats.count(a)
		cs := stats.ChannelPerformance[a.Channel]
		cs.count(a)
		stats.ChannelPerformance[a.Channel] = cs
	}
	stats.computeRates()

	for ch, cs := range stats.ChannelPerformance {
		cs.computeRates()
		stats.ChannelPerformance[ch] = cs
		if cs.Sent > 0 {
			stats.PreferredChannels = append(stats.PreferredChannels, ch)
		}
	}
	slices.SortFunc(stats.PreferredChannels, func(a, b ChannelType) int {
		sa, sb := stats.ChannelPerformance[a], stats.ChannelPerformance[b]
		if c := cmp.Compare(sb.OpenRate, sa.OpenRate); c != 0 {
			return c
		}
		if c := cmp.Compare(sb.Delivered, sa.Delivered); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	return stats, nil
}

// windowStart returns the UTC midnight windowDays-1 days before now's day.
func windowStart(now time.Time, windowDays int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d-(windowDays-1), 0, 0, 0, 0, time.UTC)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
