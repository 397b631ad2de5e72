package ipreputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "iprep:"

// RedisCache shares reputations across instances.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, addr netip.Addr) (*Reputation, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+addr.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached reputation: %w", err)
	}
	var rep Reputation
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, false, fmt.Errorf("decode cached reputation: %w", err)
	}
	return &rep, true, nil
}

func (c *RedisCache) Set(ctx context.Context, addr netip.Addr, rep *Reputation, ttl time.Duration) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode reputation: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+addr.String(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache reputation: %w", err)
	}
	return nil
}
