package ratelimit

import (
	"context"
	"time"
)

// Window is a trailing time window allowing at most Limit recorded events.
// Windows with a non-positive Size or Limit are ignored.
type Window struct {
	Size  time.Duration
	Limit int
}

func (w Window) active() bool { return w.Size > 0 && w.Limit > 0 }

// Decision is the outcome of a reservation attempt.
type Decision struct {
	// Allowed reports whether the event was recorded.
	Allowed bool

	// Violated is the first window that rejected the event. Zero when allowed.
	Violated Window

	// Counts holds the number of events found in each window before the
	// reservation, in the order the windows were given.
	Counts []int64

	// RetryAfter estimates how long until the violated window has room again.
	RetryAfter time.Duration
}

// Store keeps per-key event timestamps.
type Store interface {
	// Reserve atomically checks every window at now and records now only if
	// all of them have room. Timestamps later than now are not counted.
	Reserve(ctx context.Context, key string, now time.Time, windows []Window) (*Decision, error)

	// Count returns the number of events recorded in (now-size, now].
	Count(ctx context.Context, key string, now time.Time, size time.Duration) (int64, error)

	// Reset removes all events for key.
	Reset(ctx context.Context, key string) error
}

func maxSize(windows []Window) time.Duration {
	var m time.Duration
	for _, w := range windows {
		if w.active() && w.Size > m {
			m = w.Size
		}
	}
	return m
}
