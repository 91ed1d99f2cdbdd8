package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles Redis operations. Redis is optional and only
// backs the request rate limiter; it is never the message log.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// rateLimitKey returns the key for a caller's rate limit counter.
func rateLimitKey(caller string) string {
	return fmt.Sprintf("ratelimit:%s", caller)
}

// IncrWindow increments a caller's fixed-window counter and returns
// the new count. The window TTL is set on first increment.
func (s *RedisStore) IncrWindow(ctx context.Context, caller string, window time.Duration) (int64, error) {
	key := rateLimitKey(caller)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
