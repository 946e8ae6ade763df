// Package ratelimit implements multi-window sliding-log rate limiting.
//
// A SlidingWindow enforces any number of trailing windows against a Store. A
// reservation either records the event in every window or in none of them,
// which makes it suitable for "check and reserve" quota decisions:
//
//	limiter, _ := ratelimit.NewSlidingWindow(store,
//		ratelimit.Window{Size: time.Hour, Limit: 10},
//		ratelimit.Window{Size: 24 * time.Hour, Limit: 50},
//		ratelimit.Window{Size: 15 * time.Minute, Limit: 1}, // cooldown
//	)
//	d, err := limiter.Reserve(ctx, ratelimit.Key(recipientID, "sms"), now)
//
// Time is always supplied by the caller. Events recorded after now (clock
// skew between processes) are not counted against it.
//
// MemoryStore serves single-process deployments and tests. RedisStore keeps
// the log in sorted sets and reserves through a Lua script.
package ratelimit
