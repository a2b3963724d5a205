// Package sync provides key-scoped locking for in-process counter stores.
package sync

import (
	"hash/fnv"
	"sync"
)

// DefaultShards is the shard count used when none is given.
const DefaultShards = 64

// ShardedMutex serializes work per key without a single global lock.
// Keys hashing to the same shard share a mutex, so unrelated keys may
// occasionally contend but the same key never runs concurrently.
type ShardedMutex struct {
	shards []sync.Mutex
}

// NewShardedMutex creates a mutex with n shards, rounded up to a power of two.
// n <= 0 uses DefaultShards.
func NewShardedMutex(n int) *ShardedMutex {
	if n <= 0 {
		n = DefaultShards
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return &ShardedMutex{shards: make([]sync.Mutex, size)}
}

func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// WithLock runs fn while holding key's shard.
func (m *ShardedMutex) WithLock(key string, fn func()) {
	mu := &m.shards[m.shardFor(key)]
	mu.Lock()
	defer mu.Unlock()
	fn()
}

// Shards returns the shard count.
func (m *ShardedMutex) Shards() int {
	return len(m.shards)
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() & uint32(len(m.shards)-1))
}
