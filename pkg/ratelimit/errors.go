package ratelimit

import "errors"

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNoWindows         = errors.New("at least one window with positive size and limit is required")
	ErrKeyRequired       = errors.New("key is required")
	ErrStoreRequired     = errors.New("store is required")
	ErrStoreUnavailable  = errors.New("rate limit store unavailable")
)
