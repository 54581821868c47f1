// Package ratelimit limits request rates per client key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request for key may proceed.
// When it may not, the returned duration is how long the caller should wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// slidingWindowScript trims expired entries, then admits the request if the window has room.
// A rejected call returns the negated wait in milliseconds.
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

// SlidingWindowLimiter shares its window across every node through Redis.
type SlidingWindowLimiter struct {
	redis  redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewSlidingWindowLimiter allows limit requests per window for each key.
func NewSlidingWindowLimiter(client redis.UniversalClient, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:  client,
		limit:  limit,
		window: window,
		prefix: "labeler:ratelimit:",
		now:    time.Now,
	}
}

// Allow admits the request when Redis is unreachable; rate limiting never blocks the classifier.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil || l.limit <= 0 {
		return true, 0
	}

	now := l.now()
	result, err := slidingWindowScript.Run(ctx, l.redis, []string{l.prefix + key},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
		uuid.NewString(),
	).Int64()
	if err != nil {
		return true, 0
	}

	switch {
	case result == 1:
		return true, 0
	case result < 0:
		return false, time.Duration(-result) * time.Millisecond
	default:
		return false, l.window
	}
}

// WindowLimiter is a single-node fixed window limiter.
type WindowLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

type windowEntry struct {
	count     int
	expiresAt time.Time
}

// NewWindowLimiter allows limit requests per window for each key.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		entries: make(map[string]*windowEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *WindowLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		l.entries[key] = &windowEntry{count: 1, expiresAt: now.Add(l.window)}
		return true, 0
	}
	if entry.count >= l.limit {
		return false, entry.expiresAt.Sub(now)
	}
	entry.count++
	return true, 0
}

// Run evicts expired windows until ctx is done.
func (l *WindowLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *WindowLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, entry := range l.entries {
		if !now.Before(entry.expiresAt) {
			delete(l.entries, key)
		}
	}
}
