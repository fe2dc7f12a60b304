package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter allows one operation per key per window across all replicas
// sharing the same Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedis creates a new Redis-backed rate limiter
func NewRedis(client *redis.Client, prefix string, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		window: window,
	}
}

// Allow fails open when Redis is unreachable.
func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := l.client.SetNX(ctx, l.prefix+key, time.Now().Unix(), l.window).Result()
	if err != nil {
		return true
	}
	return ok
}

var _ RateLimiter = (*RedisLimiter)(nil)
