package velocity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "vel:"

// RedisStore keeps one sorted set per key scored by unix milliseconds.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) Record(ctx context.Context, key string, at time.Time) error {
	k := redisKeyPrefix + key
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
	pipe.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(at.Add(-s.retention).UnixMilli(), 10))
	pipe.PExpire(ctx, k, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (s *RedisStore) Count(ctx context.Context, key string, since, until time.Time) (int, error) {
	n, err := s.client.ZCount(ctx, redisKeyPrefix+key,
		"("+strconv.FormatInt(since.UnixMilli(), 10),
		strconv.FormatInt(until.UnixMilli(), 10),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return int(n), nil
}
