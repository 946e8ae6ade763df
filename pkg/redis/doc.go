// Package redis connects to Redis with go-redis/v9. The alert service uses it
// as the shared backing store for per-recipient rate limits, so limits hold
// across every replica.
package redis
