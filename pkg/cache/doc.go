// Package cache provides a generic, thread-safe LRU cache with optional TTL.
//
// It backs short-lived lookups such as recipient profiles and bounds the
// number of live per-recipient dashboard topics:
//
//	profiles := cache.NewLRUCache[string, Profile](1024, cache.WithTTL(time.Minute))
//	p, err := profiles.GetOrLoad(ctx, id, directory.Lookup)
package cache
