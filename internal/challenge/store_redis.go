package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

// RedisStore shares challenges across instances. Transitions use WATCH so a
// handle is only ever moved out of a given state once.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func challengeKey(handle string) string {
	return "challenge:" + handle
}

func (s *RedisStore) Create(ctx context.Context, c *Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	ttl := c.ExpiresAt.Sub(requestcontext.Now(ctx)) + resolvedRetention
	created, err := s.client.SetNX(ctx, challengeKey(c.Handle), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	if !created {
		return fmt.Errorf("challenge %s: %w", c.Handle, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, handle string) (*Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKey(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("challenge %s: %w", handle, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	var c Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, from State, c *Challenge) error {
	key := challengeKey(c.Handle)
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("challenge %s: %w", c.Handle, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get challenge: %w", err)
		}
		var cur Challenge
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode challenge: %w", err)
		}
		if cur.State != from {
			return fmt.Errorf("challenge %s is %s: %w", c.Handle, cur.State, sentinel.ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("challenge %s changed concurrently: %w", c.Handle, sentinel.ErrConflict)
	}
	return err
}
