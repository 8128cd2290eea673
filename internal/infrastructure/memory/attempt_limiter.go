package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
)

type window struct {
	failures int
	resetAt  time.Time
}

// AttemptLimiter counts failures per key in a fixed window.
type AttemptLimiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	clock   Clock
	windows map[string]window
}

func NewAttemptLimiter(limit int, period time.Duration, c Clock) *AttemptLimiter {
	return &AttemptLimiter{
		limit:   limit,
		period:  period,
		clock:   orSystem(c),
		windows: make(map[string]window),
	}
}

func (l *AttemptLimiter) Check(ctx context.Context, key string) (account.LimitDecision, error) {
	if err := ctx.Err(); err != nil {
		return account.LimitDecision{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.decide(l.current(key)), nil
}

func (l *AttemptLimiter) RecordFailure(ctx context.Context, key string) (account.LimitDecision, error) {
	if err := ctx.Err(); err != nil {
		return account.LimitDecision{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(key)
	if w.failures == 0 {
		w.resetAt = l.clock.Now().Add(l.period)
	}
	w.failures++
	l.windows[key] = w
	return l.decide(w), nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// current returns the live window for key, dropping an expired one. Caller holds mu.
func (l *AttemptLimiter) current(key string) window {
	w, ok := l.windows[key]
	if ok && !l.clock.Now().Before(w.resetAt) {
		delete(l.windows, key)
		return window{}
	}
	return w
}

func (l *AttemptLimiter) decide(w window) account.LimitDecision {
	d := account.LimitDecision{
		Allowed:  l.limit <= 0 || w.failures < l.limit,
		Failures: w.failures,
		Limit:    l.limit,
	}
	if !d.Allowed {
		d.RetryAfter = w.resetAt.Sub(l.clock.Now())
	}
	return d
}
