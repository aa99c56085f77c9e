package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts login attempts per key in fixed one-minute windows
// shared by every server instance.
type LoginLimiter struct {
	rdb       *redis.Client
	perMinute int64
}

func NewLoginLimiter(rdb *redis.Client, perMinute int) *LoginLimiter {
	return &LoginLimiter{rdb: rdb, perMinute: int64(perMinute)}
}

// Allow records one attempt for key and reports whether it is within budget.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := time.Now().Unix() / 60
	k := fmt.Sprintf("badluck:login:%s:%d", key, window)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("login limiter: %w", err)
	}
	return incr.Val() <= l.perMinute, nil
}
