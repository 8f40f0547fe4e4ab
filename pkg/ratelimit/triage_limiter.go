// Package ratelimit guards the inbound webhook: a per-sender sliding window and a
// delivery deduplicator for provider retries. Both use Redis when configured and fall
// back to process memory otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// SlidingWindowLimiter - Redis 기반 Sliding Window Rate Limiter
// =============================================================================

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(tonumber(oldest[2]) + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter allows at most limit events per key within window.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	local map[string][]time.Time
}

// NewSlidingWindowLimiter creates a limiter. A nil client keeps the window in memory.
func NewSlidingWindowLimiter(redisClient *redis.Client, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		now:    time.Now,
		local:  make(map[string][]time.Time),
	}
}

// Allow records one event for key and reports whether it fits the window. When it does
// not, the returned duration is how long until the oldest event leaves the window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}
	if l.redis == nil {
		return l.allowLocal(key)
	}

	now := l.now()
	result, err := slidingWindowScript.Run(ctx, l.redis, []string{"ratelimit:" + key},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
		uuid.NewString(),
	).Int64()
	if err != nil {
		// Redis 에러 시 허용 (fallback)
		return true, 0
	}

	if result == 1 {
		return true, 0
	}
	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}
	return false, l.window
}

func (l *SlidingWindowLimiter) allowLocal(key string) (bool, time.Duration) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.local[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.local[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}
	l.local[key] = append(kept, now)
	return true, 0
}

// =============================================================================
// Deduplicator - 중복 요청 방지
// =============================================================================

// Deduplicator remembers keys for ttl so a retried delivery is processed once.
type Deduplicator struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time

	mu    sync.Mutex
	local map[string]time.Time
}

// NewDeduplicator creates a deduplicator. A nil client keeps keys in memory.
func NewDeduplicator(redisClient *redis.Client, prefix string, ttl time.Duration) *Deduplicator {
	return &Deduplicator{
		redis:  redisClient,
		ttl:    ttl,
		prefix: prefix,
		now:    time.Now,
		local:  make(map[string]time.Time),
	}
}

// FirstSeen atomically marks key and reports whether this call was the first within ttl.
// An empty key is always first.
func (d *Deduplicator) FirstSeen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	if d.redis != nil {
		ok, err := d.redis.SetNX(ctx, fmt.Sprintf("%s:%s", d.prefix, key), "1", d.ttl).Result()
		if err != nil {
			return true, fmt.Errorf("dedup %s: %w", key, err)
		}
		return ok, nil
	}

	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, at := range d.local {
		if now.Sub(at) >= d.ttl {
			delete(d.local, k)
		}
	}
	if _, seen := d.local[key]; seen {
		return false, nil
	}
	d.local[key] = now
	return true, nil
}
