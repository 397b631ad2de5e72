package counter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryCounterStoreSuite struct {
	suite.Suite
	store *InMemoryCounterStore
	now   time.Time
	ctx   context.Context
}

func TestInMemoryCounterStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryCounterStoreSuite))
}

func (s *InMemoryCounterStoreSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.store = NewInMemoryCounterStore()
	s.store.now = func() time.Time { return s.now }
	s.ctx = context.Background()
}

func (s *InMemoryCounterStoreSuite) TestIncrement() {
	s.Run("returns running total", func() {
		v, err := s.store.Increment(s.ctx, "k:total", 1, time.Minute)
		s.Require().NoError(err)
		s.Equal(int64(1), v)

		v, err = s.store.Increment(s.ctx, "k:total", 3, time.Minute)
		s.Require().NoError(err)
		s.Equal(int64(4), v)
	})

	s.Run("expired key starts over", func() {
		_, err := s.store.Increment(s.ctx, "k:expire", 5, time.Minute)
		s.Require().NoError(err)

		s.now = s.now.Add(time.Minute)
		v, err := s.store.Increment(s.ctx, "k:expire", 1, time.Minute)
		s.Require().NoError(err)
		s.Equal(int64(1), v)
	})

	s.Run("ttl is set by first increment only", func() {
		_, err := s.store.Increment(s.ctx, "k:ttl", 1, time.Minute)
		s.Require().NoError(err)
		s.now = s.now.Add(30 * time.Second)
		_, err = s.store.Increment(s.ctx, "k:ttl", 1, time.Hour)
		s.Require().NoError(err)

		s.now = s.now.Add(31 * time.Second)
		v, err := s.store.Get(s.ctx, "k:ttl")
		s.Require().NoError(err)
		s.Equal(int64(0), v)
	})
}

func (s *InMemoryCounterStoreSuite) TestSweep() {
	for _, k := range []string{"a", "b", "c"} {
		_, err := s.store.Increment(s.ctx, k, 1, time.Second)
		s.Require().NoError(err)
	}
	s.now = s.now.Add(2 * time.Minute)
	_, err := s.store.Increment(s.ctx, "d", 1, time.Minute)
	s.Require().NoError(err)
	s.Equal(1, s.store.Len())
}

func (s *InMemoryCounterStoreSuite) TestDelete() {
	_, err := s.store.Increment(s.ctx, "k:del", 2, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Delete(s.ctx, "k:del"))

	v, err := s.store.Get(s.ctx, "k:del")
	s.Require().NoError(err)
	s.Equal(int64(0), v)
}

func (s *InMemoryCounterStoreSuite) TestConcurrentIncrementsAreDistinct() {
	const workers = 200
	var wg sync.WaitGroup
	seen := make([]atomic.Bool, workers+1)
	var dupes atomic.Int32

	for range workers {
		wg.Go(func() {
			v, err := s.store.Increment(s.ctx, "k:race", 1, time.Minute)
			if err != nil || v < 1 || v > workers {
				dupes.Add(1)
				return
			}
			if seen[v].Swap(true) {
				dupes.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(0), dupes.Load())
	v, err := s.store.Get(s.ctx, "k:race")
	s.Require().NoError(err)
	s.Equal(int64(workers), v)
}
