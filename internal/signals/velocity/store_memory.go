package velocity

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps timestamps per key, pruned past the retention horizon.
type MemoryStore struct {
	mu        sync.Mutex
	series    map[string][]time.Time
	retention time.Duration
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{series: make(map[string][]time.Time), retention: retention}
}

func (s *MemoryStore) Record(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := append(s.series[key], at)
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	horizon := at.Add(-s.retention)
	cut := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(horizon) })
	s.series[key] = ts[cut:]
	return nil
}

// Count returns events in (since, until].
func (s *MemoryStore) Count(_ context.Context, key string, since, until time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.series[key] {
		if t.After(since) && !t.After(until) {
			n++
		}
	}
	return n, nil
}
