package spam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HashIndex remembers recent content keys. Seen records key and reports
// whether it was already present, in one atomic step. Contains only reads.
type HashIndex interface {
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, key string) (bool, error)
}

// duplicateKey scopes a content hash to its author. The hash is fixed-length
// hex, so the key stays unambiguous whatever the subject ID holds.
func duplicateKey(subject, hash string) string {
	return subject + ":" + hash
}

// MemoryIndex is a process-local HashIndex.
type MemoryIndex struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryIndex) Seen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.entries[key]; ok && now.Before(exp) {
		return true, nil
	}
	m.entries[key] = now.Add(ttl)
	if len(m.entries)%1024 == 0 {
		for h, exp := range m.entries {
			if !now.Before(exp) {
				delete(m.entries, h)
			}
		}
	}
	return false, nil
}

func (m *MemoryIndex) Contains(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[key]
	return ok && m.now().Before(exp), nil
}

// RedisIndex shares the hash index across instances using SET NX.
type RedisIndex struct {
	client redis.UniversalClient
}

func NewRedisIndex(client redis.UniversalClient) *RedisIndex {
	return &RedisIndex{client: client}
}

const redisHashPrefix = "spam:hash:"

func (r *RedisIndex) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := r.client.SetNX(ctx, redisHashPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return !created, nil
}

func (r *RedisIndex) Contains(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, redisHashPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("look up content hash: %w", err)
	}
	return n > 0, nil
}
