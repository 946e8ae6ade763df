package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/pkg/ratelimit"
)

// RateLimiter enforces per-recipient, per-channel hourly and daily caps and
// cooldowns on top of a ratelimit.Store. Check and increment are one atomic
// store operation.
type RateLimiter struct {
	registry *Registry
	limiters map[ChannelType]*ratelimit.SlidingWindow
	logger   *slog.Logger
}

type RateLimiterOption func(*RateLimiter)

func WithRateLimiterLogger(l *slog.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		if l != nil {
			rl.logger = l
		}
	}
}

// NewRateLimiter builds one sliding-window limiter per registry channel.
// Channels without any limit are never throttled.
func NewRateLimiter(registry *Registry, store ratelimit.Store, opts ...RateLimiterOption) (*RateLimiter, error) {
	if store == nil {
		return nil, ratelimit.ErrStoreRequired
	}
	rl := &RateLimiter{
		registry: registry,
		limiters: make(map[ChannelType]*ratelimit.SlidingWindow),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(rl)
	}

	for _, ch := range registry.All() {
		windows := windowsFor(ch.RateLimits)
		if len(windows) == 0 {
			continue
		}
		sw, err := ratelimit.NewSlidingWindow(store, windows...)
		if err != nil {
			return nil, fmt.Errorf("rate limiter for %q: %w", ch.Type, err)
		}
		rl.limiters[ch.Type] = sw
	}
	return rl, nil
}

func windowsFor(l RateLimits) []ratelimit.Window {
	var ws []ratelimit.Window
	if l.MaxPerHour > 0 {
		ws = append(ws, ratelimit.Window{Size: time.Hour, Limit: l.MaxPerHour})
	}
	if l.MaxPerDay > 0 {
		ws = append(ws, ratelimit.Window{Size: 24 * time.Hour, Limit: l.MaxPerDay})
	}
	if l.CooldownMinutes > 0 {
		ws = append(ws, ratelimit.Window{Size: time.Duration(l.CooldownMinutes) * time.Minute, Limit: 1})
	}
	return ws
}

// CheckAndReserve counts a send for (recipientID, channel) at now if every
// window has room. It returns nil when the send may proceed, an error
// wrapping ErrRateLimitExceeded when a cap or cooldown applies, and
// ErrUnknownChannel for channels missing from the registry.
// Store failures are logged and the send is allowed.
func (rl *RateLimiter) CheckAndReserve(ctx context.Context, recipientID string, channel ChannelType, now time.Time) error {
	if _, err := rl.registry.Get(channel); err != nil {
		return err
	}
	sw, ok := rl.limiters[channel]
	if !ok {
		return nil
	}

	d, err := sw.Reserve(ctx, ratelimit.Key("alert", recipientID, string(channel)), now)
	if err != nil {
		rl.logger.LogAttrs(ctx, slog.LevelWarn, "rate limit store unavailable, allowing send",
			logger.RecipientID(recipientID),
			logger.Channel(channel),
			logger.Error(err),
		)
		return nil
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s for %s (limit %d per %s, retry after %s)",
			ErrRateLimitExceeded, channel, recipientID, d.Violated.Limit, d.Violated.Size, d.RetryAfter.Round(time.Second))
	}
	return nil
}
