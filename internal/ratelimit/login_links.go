package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "jobsheet:login_link:"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// FixedWindow counts hits per key in redis and resets the count every window.
// Counters are shared by every API replica pointing at the same redis.
type FixedWindow struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
}

func NewFixedWindow(rdb redis.Cmdable, limit int, window time.Duration) *FixedWindow {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &FixedWindow{rdb: rdb, limit: limit, window: window}
}

// Allow records one hit for key. Keys are case-insensitive.
func (l *FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	k := keyPrefix + strings.ToLower(strings.TrimSpace(key))

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd

	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", k, err)
	}

	count := int(incr.Val())
	retry := ttl.Val()

	// first hit of a window, or a counter that lost its expiry
	if retry < 0 {
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit %s: %w", k, err)
		}
		retry = l.window
	}

	if count > l.limit {
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}
