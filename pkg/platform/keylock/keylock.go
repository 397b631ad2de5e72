// Package keylock serializes work per key inside one process.
package keylock

import (
	"context"
	"hash/fnv"
)

const shardCount = 256

// Sharded is a fixed pool of channel mutexes selected by key hash. Distinct
// keys may share a shard; the same key always does.
type Sharded struct {
	shards [shardCount]chan struct{}
}

func New() *Sharded {
	m := &Sharded{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

// Lock blocks until the key is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (m *Sharded) Lock(ctx context.Context, key string) (func(), error) {
	shard := m.shards[m.index(key)]
	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Sharded) index(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
