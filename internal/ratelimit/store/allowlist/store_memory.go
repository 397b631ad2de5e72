package allowlist

import (
	"context"
	"sort"
	"sync"

	"riskgate/internal/ratelimit/models"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

// InMemoryAllowlistStore keeps allowlist entries in process memory.
type InMemoryAllowlistStore struct {
	mu      sync.RWMutex
	entries map[string]*models.AllowlistEntry
}

func NewInMemoryAllowlistStore() *InMemoryAllowlistStore {
	return &InMemoryAllowlistStore{entries: make(map[string]*models.AllowlistEntry)}
}

func (s *InMemoryAllowlistStore) IsAllowlisted(ctx context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[identifier]
	return ok && e.Active(requestcontext.Now(ctx)), nil
}

func (s *InMemoryAllowlistStore) Add(_ context.Context, entry *models.AllowlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries[entry.Identifier] = &cp
	return nil
}

func (s *InMemoryAllowlistStore) Remove(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[identifier]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, identifier)
	return nil
}

// List returns active entries ordered by creation time.
func (s *InMemoryAllowlistStore) List(ctx context.Context) ([]*models.AllowlistEntry, error) {
	now := requestcontext.Now(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AllowlistEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Active(now) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
