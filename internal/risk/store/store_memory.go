package store

import (
	"context"
	"fmt"
	"sync"

	"riskgate/internal/risk/models"
	"riskgate/pkg/platform/sentinel"
)

// InMemoryStore keeps assessments in insertion order with an ID index.
type InMemoryStore struct {
	mu    sync.RWMutex
	order []*models.Assessment
	byID  map[string]*models.Assessment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]*models.Assessment)}
}

func (s *InMemoryStore) Save(_ context.Context, a *models.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[a.ID]; exists {
		return fmt.Errorf("assessment %s: %w", a.ID, sentinel.ErrConflict)
	}
	cp := a.Clone()
	s.byID[a.ID] = cp
	s.order = append(s.order, cp)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("assessment %s: %w", id, sentinel.ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, f models.AssessmentFilter) ([]*models.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := f.EffectiveLimit()
	out := make([]*models.Assessment, 0)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		a := s.order[i]
		if f.Subject != "" && a.Subject != f.Subject {
			continue
		}
		if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !a.CreatedAt.Before(f.Until) {
			continue
		}
		out = append(out, a.Clone())
	}
	return out, nil
}
