package ratelimit

import (
	"context"
	"time"
)

// SlidingWindow enforces several trailing windows at once, e.g. 10 per hour,
// 50 per day and 1 per 15 minutes (a cooldown).
type SlidingWindow struct {
	store   Store
	windows []Window
}

// NewSlidingWindow creates a limiter over the active windows.
func NewSlidingWindow(store Store, windows ...Window) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	active := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.active() {
			active = append(active, w)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoWindows
	}
	return &SlidingWindow{store: store, windows: active}, nil
}

// Windows returns the enforced windows.
func (sw *SlidingWindow) Windows() []Window {
	out := make([]Window, len(sw.windows))
	copy(out, sw.windows)
	return out
}

// Reserve records an event for key at now if every window has room.
func (sw *SlidingWindow) Reserve(ctx context.Context, key string, now time.Time) (*Decision, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	return sw.store.Reserve(ctx, key, now, sw.windows)
}

// Status reports per-window counts at now without recording anything.
func (sw *SlidingWindow) Status(ctx context.Context, key string, now time.Time) (*Decision, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	d := &Decision{Allowed: true, Counts: make([]int64, len(sw.windows))}
	for i, w := range sw.windows {
		n, err := sw.store.Count(ctx, key, now, w.Size)
		if err != nil {
			return nil, err
		}
		d.Counts[i] = n
		if d.Allowed && n >= int64(w.Limit) {
			d.Allowed = false
			d.Violated = w
		}
	}
	return d, nil
}

// Reset clears recorded events for key.
func (sw *SlidingWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return sw.store.Reset(ctx, key)
}
