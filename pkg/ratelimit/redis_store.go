package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// reserveScript trims the sorted set, counts every window and adds the new
// member only if all windows have room. Returns {violatedIndex, counts, retryMs}
// where violatedIndex is 1-based and 0 means allowed.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local retention = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - retention)
local counts = {}
local violated = 0
local retry = 0
local idx = 0
for i = 4, #ARGV, 2 do
  idx = idx + 1
  local size = tonumber(ARGV[i])
  local limit = tonumber(ARGV[i + 1])
  local c = redis.call('ZCOUNT', key, '(' .. (now - size), now)
  counts[idx] = c
  if violated == 0 and c >= limit then
    violated = idx
    local oldest = redis.call('ZRANGEBYSCORE', key, '(' .. (now - size), now, 'WITHSCORES', 'LIMIT', c - limit, 1)
    if #oldest == 2 then
      retry = tonumber(oldest[2]) + size - now
    end
  end
end
if violated == 0 then
  redis.call('ZADD', key, now, ARGV[2])
  redis.call('PEXPIRE', key, retention)
end
return {violated, counts, retry}
`)

// RedisStore keeps event timestamps in Redis sorted sets, one per key.
// Reservations run as a single Lua script, so they are atomic across processes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix namespaces every key. Defaults to "ratelimit:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreRequired
	}
	s := &RedisStore{client: client, prefix: "ratelimit:"}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, key string, now time.Time, windows []Window) (*Decision, error) {
	retention := maxSize(windows)
	if retention <= 0 {
		return nil, ErrNoWindows
	}

	active := make([]Window, 0, len(windows))
	positions := make([]int, 0, len(windows))
	args := []any{now.UnixMilli(), strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString(), retention.Milliseconds()}
	for i, w := range windows {
		if !w.active() {
			continue
		}
		active = append(active, w)
		positions = append(positions, i)
		args = append(args, w.Size.Milliseconds(), w.Limit)
	}

	raw, err := reserveScript.Run(ctx, s.client, []string{s.prefix + key}, args...).Slice()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("%w: unexpected script reply of %d elements", ErrStoreUnavailable, len(raw))
	}

	violated, _ := raw[0].(int64)
	counts, _ := raw[1].([]any)
	retryMs, _ := raw[2].(int64)

	d := &Decision{Allowed: violated == 0, Counts: make([]int64, len(windows))}
	for i, c := range counts {
		if i < len(positions) {
			d.Counts[positions[i]], _ = c.(int64)
		}
	}
	if !d.Allowed && int(violated) <= len(active) {
		d.Violated = active[violated-1]
		d.RetryAfter = time.Duration(retryMs) * time.Millisecond
	}
	return d, nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, key string, now time.Time, size time.Duration) (int64, error) {
	minScore := "(" + strconv.FormatInt(now.Add(-size).UnixMilli(), 10)
	maxScore := strconv.FormatInt(now.UnixMilli(), 10)
	n, err := s.client.ZCount(ctx, s.prefix+key, minScore, maxScore).Result()
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return n, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
