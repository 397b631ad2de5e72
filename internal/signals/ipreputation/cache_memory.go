package ipreputation

import (
	"context"
	"net/netip"
	"sync"
	"time"
)

// MemoryCache is a process-local reputation cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[netip.Addr]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rep       Reputation
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[netip.Addr]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, addr netip.Addr) (*Reputation, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[addr]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[addr]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, addr)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	rep := e.rep
	return &rep, true, nil
}

func (c *MemoryCache) Set(_ context.Context, addr netip.Addr, rep *Reputation, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[addr] = memoryEntry{rep: *rep, expiresAt: c.now().Add(ttl)}
	return nil
}
