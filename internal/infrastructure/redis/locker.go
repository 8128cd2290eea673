package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Delete the lease only if we still own it.
const releaseLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	lockRetryMin     = 5 * time.Millisecond
	lockRetryMax     = 200 * time.Millisecond
	lockReleaseLimit = 2 * time.Second
)

// Locker serializes work on a key across processes with a SET NX PX lease.
// A lease that outlives its TTL is lost silently; the stores' version
// checks catch any write made after that.
type Locker struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewLocker(c *Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{rdb: unwrap(c), prefix: "lock:", ttl: ttl}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l.rdb == nil {
		return nil, errNotConfigured
	}

	k := l.prefix + key
	token := uuid.NewString()
	backoff := lockRetryMin

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(k, token), nil
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		if backoff *= 2; backoff > lockRetryMax {
			backoff = lockRetryMax
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), lockReleaseLimit)
		defer cancel()
		_ = l.rdb.Eval(ctx, releaseLua, []string{key}, token).Err()
	}
}
