package audit

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore is an append-only slice guarded by a mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*BlockedAttempt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, a *BlockedAttempt) error {
	cp := *a
	cp.Reasons = slices.Clone(a.Reasons)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &cp)
	return nil
}

// List returns matches newest first.
func (s *InMemoryStore) List(_ context.Context, f Filter) ([]*BlockedAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := f.EffectiveLimit()
	out := make([]*BlockedAttempt, 0)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[i]
		if f.Matches(r.Subject, r.CreatedAt) {
			cp := *r
			cp.Reasons = slices.Clone(r.Reasons)
			out = append(out, &cp)
		}
	}
	return out, nil
}
