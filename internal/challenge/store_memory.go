package challenge

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

// resolvedRetention keeps finished or expired challenges around long enough
// to answer repeat submissions with a precise error.
const resolvedRetention = 10 * time.Minute

type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{challenges: make(map[string]*Challenge)}
}

func (s *InMemoryStore) Create(ctx context.Context, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(requestcontext.Now(ctx))
	if _, exists := s.challenges[c.Handle]; exists {
		return fmt.Errorf("challenge %s: %w", c.Handle, sentinel.ErrConflict)
	}
	s.challenges[c.Handle] = clone(c)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, handle string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[handle]
	if !ok {
		return nil, fmt.Errorf("challenge %s: %w", handle, sentinel.ErrNotFound)
	}
	return clone(c), nil
}

func (s *InMemoryStore) CompareAndSwap(_ context.Context, from State, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.challenges[c.Handle]
	if !ok {
		return fmt.Errorf("challenge %s: %w", c.Handle, sentinel.ErrNotFound)
	}
	if cur.State != from {
		return fmt.Errorf("challenge %s is %s: %w", c.Handle, cur.State, sentinel.ErrConflict)
	}
	s.challenges[c.Handle] = clone(c)
	return nil
}

func (s *InMemoryStore) purgeLocked(now time.Time) {
	cutoff := now.Add(-resolvedRetention)
	for h, c := range s.challenges {
		if c.ExpiresAt.Before(cutoff) {
			delete(s.challenges, h)
		}
	}
}

func clone(c *Challenge) *Challenge {
	cp := *c
	cp.ErrorCodes = slices.Clone(c.ErrorCodes)
	return &cp
}
