package sync

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewShardedMutexRoundsUp(t *testing.T) {
	assert.Equal(t, DefaultShards, NewShardedMutex(0).Shards())
	assert.Equal(t, 1, NewShardedMutex(1).Shards())
	assert.Equal(t, 8, NewShardedMutex(5).Shards())
	assert.Equal(t, 16, NewShardedMutex(16).Shards())
}

func TestShardedMutex_LockUnlock(t *testing.T) {
	m := NewShardedMutex(4)

	m.Lock("ratelimit:1.2.3.4:/api/:minute")
	m.Unlock("ratelimit:1.2.3.4:/api/:minute")

	// Empty key maps to shard 0.
	m.Lock("")
	m.Unlock("")
}

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex(DefaultShards)
	counter := 0
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			m.WithLock("same-key", func() { counter++ })
		})
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_ShardForIsStable(t *testing.T) {
	m := NewShardedMutex(32)
	for i := range 50 {
		key := fmt.Sprintf("client-%d", i)
		first := m.shardFor(key)
		assert.Equal(t, first, m.shardFor(key))
		assert.Less(t, first, m.Shards())
	}
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex(32)

	shards := make(map[int]bool)
	for i := range 200 {
		shards[m.shardFor(fmt.Sprintf("ratelimit:10.0.0.%d:/api/v1/:hour", i))] = true
	}

	assert.Greater(t, len(shards), 16, "keys should spread across shards")
}
