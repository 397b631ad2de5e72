//go:build integration

package counter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"riskgate/pkg/testutil/containers"
)

type RedisCounterStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisCounterStore
	ctx   context.Context
}

func TestRedisCounterStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisCounterStoreSuite))
}

func (s *RedisCounterStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisCounterStore(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisCounterStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisCounterStoreSuite) TestIncrementSetsTTL() {
	v, err := s.store.Increment(s.ctx, "rl:t:k:1", 1, time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(1), v)

	ttl, err := s.redis.Client.PTTL(s.ctx, "rl:t:k:1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisCounterStoreSuite) TestConcurrentIncrements() {
	const workers = 100
	var wg sync.WaitGroup
	var maxSeen atomic.Int64
	for range workers {
		wg.Go(func() {
			v, err := s.store.Increment(s.ctx, "rl:t:race:1", 1, time.Minute)
			if err == nil {
				for {
					cur := maxSeen.Load()
					if v <= cur || maxSeen.CompareAndSwap(cur, v) {
						break
					}
				}
			}
		})
	}
	wg.Wait()
	s.Equal(int64(workers), maxSeen.Load())
}
