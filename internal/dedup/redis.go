package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "leanstats:dedup:"

// RedisMarkStore keeps marks in Redis and lets key expiry drop them.
type RedisMarkStore struct {
	client *redis.Client
}

func NewRedisMarkStore(client *redis.Client) *RedisMarkStore {
	return &RedisMarkStore{client: client}
}

func (s *RedisMarkStore) MarkFirstSeen(ctx context.Context, key string, window time.Duration) (bool, error) {
	first, err := s.client.SetNX(ctx, redisKeyPrefix+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark signature: %w", err)
	}
	return first, nil
}
