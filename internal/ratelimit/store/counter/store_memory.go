package counter

import (
	"context"
	"sync"
	"time"
)

// InMemoryCounterStore implements CounterStore for single-instance deployments
// and tests. Expired keys are swept lazily.
type InMemoryCounterStore struct {
	mu        sync.Mutex
	counters  map[string]*counter
	now       func() time.Time
	lastSweep time.Time
}

type counter struct {
	value     int64
	expiresAt time.Time
}

const sweepInterval = time.Minute

func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Increment adds n to key under a single lock, creating the key with ttl when
// absent or expired.
func (s *InMemoryCounterStore) Increment(_ context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	c := s.counters[key]
	if c == nil || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.value += n
	return c.value, nil
}

// Get returns the live value of key, or 0 when absent or expired.
func (s *InMemoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters[key]
	if c == nil || !s.now().Before(c.expiresAt) {
		return 0, nil
	}
	return c.value, nil
}

func (s *InMemoryCounterStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

// Len returns the number of tracked keys, expired or not.
func (s *InMemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// sweepLocked drops expired keys. Must be called while holding s.mu.
func (s *InMemoryCounterStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for k, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, k)
		}
	}
}
