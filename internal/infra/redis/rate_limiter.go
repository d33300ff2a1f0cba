package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter. The web layer uses it to slow down
// password guessing on the login endpoint.
type RateLimiter struct {
	client RedisClient
	prefix string
}

func NewRateLimiter(client RedisClient, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix}
}

func (r *RateLimiter) Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, error) {
	k := LoginAttemptsKey(r.prefix, subject)
	count, err := r.client.Incr(ctx, k)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, k, window); err != nil {
			return false, err
		}
	}

	return count <= int64(limit), nil
}

func LoginAttemptsKey(prefix, subject string) string {
	return key(prefix, "login_attempts:"+subject)
}
