package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"riskgate/internal/payout/models"
	"riskgate/pkg/platform/sentinel"
	"riskgate/pkg/requestcontext"
)

// InMemoryStore keeps the payout ledger for single-instance deployments and
// tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	payouts   map[string]*models.Payout
	bySubject map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		payouts:   make(map[string]*models.Payout),
		bySubject: make(map[string][]string),
	}
}

// LockSubject is a no-op; the in-process caller serializes subjects itself.
func (s *InMemoryStore) LockSubject(context.Context, string) error { return nil }

func (s *InMemoryStore) Record(_ context.Context, p *models.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payouts[p.ID]; exists {
		return fmt.Errorf("payout %s: %w", p.ID, sentinel.ErrConflict)
	}
	cp := *p
	s.payouts[p.ID] = &cp
	s.bySubject[p.Subject] = append(s.bySubject[p.Subject], p.ID)
	return nil
}

func (s *InMemoryStore) SumSince(_ context.Context, subject string, since time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, p := range s.active(subject, since) {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (s *InMemoryStore) CountSince(_ context.Context, subject string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active(subject, since)), nil
}

func (s *InMemoryStore) Transition(ctx context.Context, payoutID string, from, to models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payouts[payoutID]
	if !ok {
		return fmt.Errorf("payout %s: %w", payoutID, sentinel.ErrNotFound)
	}
	if p.Status != from {
		return fmt.Errorf("payout %s is %s: %w", payoutID, p.Status, sentinel.ErrConflict)
	}
	p.Status = to
	p.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

// Get returns a copy of one payout.
func (s *InMemoryStore) Get(_ context.Context, payoutID string) (*models.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payouts[payoutID]
	if !ok {
		return nil, fmt.Errorf("payout %s: %w", payoutID, sentinel.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// active must be called with the lock held.
func (s *InMemoryStore) active(subject string, since time.Time) []*models.Payout {
	var out []*models.Payout
	for _, id := range s.bySubject[subject] {
		p := s.payouts[id]
		if p.Status == models.StatusFailed || p.CreatedAt.Before(since) {
			continue
		}
		out = append(out, p)
	}
	return out
}
