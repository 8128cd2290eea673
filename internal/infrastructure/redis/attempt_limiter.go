package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
)

// INCR and set the window expiry on the first failure.
// returns: {count, ttl_ms}
const recordFailureLua = `
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`

// AttemptLimiter is a fixed-window failure counter:
// attempts:<key> -> count, expiring one window after the first failure.
type AttemptLimiter struct {
	rdb    *goredis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewAttemptLimiter(c *Client, limit int, window time.Duration) *AttemptLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &AttemptLimiter{
		rdb:    unwrap(c),
		prefix: "attempts:",
		limit:  limit,
		window: window,
	}
}

func (l *AttemptLimiter) Check(ctx context.Context, key string) (account.LimitDecision, error) {
	if l.disabled() {
		return l.allowAll(), nil
	}

	pipe := l.rdb.Pipeline()
	getCmd := pipe.Get(ctx, l.prefix+key)
	ttlCmd := pipe.PTTL(ctx, l.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return account.LimitDecision{}, fmt.Errorf("limiter check: %w", err)
	}

	count, err := getCmd.Int()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return l.decide(0, 0), nil
		}
		return account.LimitDecision{}, fmt.Errorf("limiter check: %w", err)
	}
	return l.decide(count, ttlCmd.Val()), nil
}

func (l *AttemptLimiter) RecordFailure(ctx context.Context, key string) (account.LimitDecision, error) {
	if l.disabled() {
		return l.allowAll(), nil
	}

	res, err := l.rdb.Eval(ctx, recordFailureLua, []string{l.prefix + key}, l.window.Milliseconds()).Result()
	if err != nil {
		return account.LimitDecision{}, fmt.Errorf("limiter record: %w", err)
	}

	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return account.LimitDecision{}, fmt.Errorf("limiter record: unexpected result %T", res)
	}
	count, _ := arr[0].(int64)
	ttl, _ := arr[1].(int64)
	return l.decide(int(count), time.Duration(ttl)*time.Millisecond), nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if l.disabled() {
		return nil
	}
	if err := l.rdb.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("limiter reset: %w", err)
	}
	return nil
}

// disabled limiters fail open.
func (l *AttemptLimiter) disabled() bool { return l.rdb == nil || l.limit <= 0 }

func (l *AttemptLimiter) allowAll() account.LimitDecision {
	return account.LimitDecision{Allowed: true, Limit: l.limit}
}

func (l *AttemptLimiter) decide(count int, ttl time.Duration) account.LimitDecision {
	d := account.LimitDecision{
		Allowed:  count < l.limit,
		Failures: count,
		Limit:    l.limit,
	}
	if !d.Allowed {
		d.RetryAfter = ttl
		if d.RetryAfter <= 0 {
			d.RetryAfter = l.window
		}
	}
	return d
}
