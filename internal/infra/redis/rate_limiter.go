package redis

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// RateLimiter counts hits per aligned time window. Each window gets its own
// key so a missed EXPIRE can never pin a counter forever.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	bucket := windowKey(key, r.now(), window)

	n, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, bucket, window); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

func windowKey(key string, at time.Time, window time.Duration) string {
	return key + ":" + strconv.FormatInt(at.UnixNano()/int64(window), 10)
}

// AccountRouteKey buckets requests per account and route.
func AccountRouteKey(accountID, route string) string {
	return strings.Join([]string{"rate_limit", accountID, route}, ":")
}
