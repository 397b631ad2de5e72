package store

import (
	"context"
	"fmt"
	"sync"

	"riskgate/internal/approval/models"
	"riskgate/pkg/platform/sentinel"
)

// InMemoryStore resolves under a single mutex so the pending check and the
// write are one step.
type InMemoryStore struct {
	mu      sync.Mutex
	order   []string
	records map[string]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.ID]; exists {
		return fmt.Errorf("approval %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.records[r.ID] = r.Clone()
	s.order = append(s.order, r.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", id, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

// List returns matches newest first.
func (s *InMemoryStore) List(_ context.Context, f models.Filter) ([]*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := f.EffectiveLimit()
	out := make([]*models.Record, 0)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.records[s.order[i]]
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Subject != "" && r.Subject != f.Subject {
			continue
		}
		if !f.Since.IsZero() && r.RequestedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !r.RequestedAt.Before(f.Until) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) Resolve(_ context.Context, id string, res models.Resolution) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", id, sentinel.ErrNotFound)
	}
	if r.Status != models.StatusPending {
		return nil, fmt.Errorf("approval %s is %s: %w", id, r.Status, sentinel.ErrConflict)
	}
	at := res.ReviewedAt
	r.Status = res.Status
	r.ReviewedBy = res.ReviewedBy
	r.Notes = res.Notes
	r.ReviewedAt = &at
	return r.Clone(), nil
}
