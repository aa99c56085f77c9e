package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether another login attempt from key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LocalLimiter is an in-process token bucket per key, used when Redis is not
// configured.
type LocalLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewLocalLimiter(perMinute int) *LocalLimiter {
	return &LocalLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow(), nil
}
