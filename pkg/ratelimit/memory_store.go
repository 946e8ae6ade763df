package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps event timestamps in process memory. Each key has its own
// lock, so reservations for different keys never contend.
type MemoryStore struct {
	mu    sync.Mutex
	keys  map[string]*eventLog
	clock func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

type eventLog struct {
	mu         sync.Mutex
	timestamps []time.Time // sorted ascending
	retention  time.Duration
	dropped    bool
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle keys are dropped.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithStoreClock sets the clock used by the background cleanup.
func WithStoreClock(clock func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore creates a store with a background cleanup loop. Call Close to stop it.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		keys:            make(map[string]*eventLog),
		clock:           time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) log(key string, create bool) *eventLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.keys[key]
	if !ok && create {
		l = &eventLog{}
		s.keys[key] = l
	}
	return l
}

// lockLog returns the locked log for key, skipping logs dropped by cleanup
// between lookup and lock.
func (s *MemoryStore) lockLog(key string) *eventLog {
	for {
		l := s.log(key, true)
		l.mu.Lock()
		if !l.dropped {
			return l
		}
		l.mu.Unlock()
	}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key string, now time.Time, windows []Window) (*Decision, error) {
	l := s.lockLog(key)
	defer l.mu.Unlock()

	if r := maxSize(windows); r > l.retention {
		l.retention = r
	}
	l.prune(now)

	d := &Decision{Allowed: true, Counts: make([]int64, len(windows))}
	for i, w := range windows {
		if !w.active() {
			continue
		}
		d.Counts[i] = l.count(now, w.Size)
		if d.Allowed && d.Counts[i] >= int64(w.Limit) {
			d.Allowed = false
			d.Violated = w
			d.RetryAfter = l.retryAfter(now, w)
		}
	}
	if !d.Allowed {
		return d, nil
	}

	l.insert(now)
	return d, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, key string, now time.Time, size time.Duration) (int64, error) {
	l := s.log(key, false)
	if l == nil {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count(now, size), nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.keys[key]; ok {
		l.mu.Lock()
		l.dropped = true
		l.mu.Unlock()
		delete(s.keys, key)
	}
	return nil
}

// count returns events in (now-size, now]. Future timestamps are ignored.
func (l *eventLog) count(now time.Time, size time.Duration) int64 {
	cutoff := now.Add(-size)
	var n int64
	for _, ts := range l.timestamps {
		if ts.After(cutoff) && !ts.After(now) {
			n++
		}
	}
	return n
}

// retryAfter is the time until the oldest event inside w leaves it.
func (l *eventLog) retryAfter(now time.Time, w Window) time.Duration {
	cutoff := now.Add(-w.Size)
	inside := make([]time.Time, 0, len(l.timestamps))
	for _, ts := range l.timestamps {
		if ts.After(cutoff) && !ts.After(now) {
			inside = append(inside, ts)
		}
	}
	// the event that must expire is the one making the count reach the limit
	idx := len(inside) - w.Limit
	if idx < 0 || idx >= len(inside) {
		return 0
	}
	return inside[idx].Add(w.Size).Sub(now)
}

func (l *eventLog) insert(ts time.Time) {
	i := sort.Search(len(l.timestamps), func(i int) bool { return l.timestamps[i].After(ts) })
	l.timestamps = append(l.timestamps, time.Time{})
	copy(l.timestamps[i+1:], l.timestamps[i:])
	l.timestamps[i] = ts
}

// prune drops events older than the retention relative to now.
func (l *eventLog) prune(now time.Time) {
	if l.retention <= 0 {
		return
	}
	cutoff := now.Add(-l.retention)
	i := sort.Search(len(l.timestamps), func(i int) bool { return l.timestamps[i].After(cutoff) })
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, l := range s.keys {
		l.mu.Lock()
		l.prune(now)
		if len(l.timestamps) == 0 {
			l.dropped = true
			delete(s.keys, key)
		}
		l.mu.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}
