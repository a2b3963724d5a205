package window

import (
	"context"
	"fmt"
	"sync"
	"time"

	"diyetlenio/internal/ratelimit/models"
	platformsync "diyetlenio/pkg/platform/sync"
)

// InMemoryStore keeps fixed-window counters in process memory.
// Suitable for development and single-instance deployments; for shared
// counters across instances use RedisStore or PostgresStore.
type InMemoryStore struct {
	locks   *platformsync.ShardedMutex
	windows sync.Map // key -> *counter
	now     func() time.Time
}

type counter struct {
	count     int
	expiresAt time.Time
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		locks: platformsync.NewShardedMutex(platformsync.DefaultShards),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Admit(_ context.Context, key string, limit int, window time.Duration) (models.WindowState, error) {
	if err := validateAdmit(key, limit, window); err != nil {
		return models.WindowState{}, err
	}

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	now := s.now()
	c := s.live(key, now)
	if c == nil {
		c = &counter{expiresAt: now.Add(window)}
		s.windows.Store(key, c)
	}

	ttl := c.expiresAt.Sub(now)
	if c.count >= limit {
		return models.WindowState{Count: c.count, Admitted: false, TTL: ttl}, nil
	}
	c.count++
	return models.WindowState{Count: c.count, Admitted: true, TTL: ttl}, nil
}

func (s *InMemoryStore) Peek(_ context.Context, key string) (models.WindowState, error) {
	if key == "" {
		return models.WindowState{}, fmt.Errorf("rate limit key is required")
	}

	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	now := s.now()
	c := s.live(key, now)
	if c == nil {
		return models.WindowState{}, nil
	}
	return models.WindowState{Count: c.count, TTL: c.expiresAt.Sub(now)}, nil
}

// live returns the unexpired counter for key. Caller holds the key's shard lock.
func (s *InMemoryStore) live(key string, now time.Time) *counter {
	v, ok := s.windows.Load(key)
	if !ok {
		return nil
	}
	c := v.(*counter)
	if !now.Before(c.expiresAt) {
		s.windows.Delete(key)
		return nil
	}
	return c
}

// Sweep removes expired windows and returns how many were dropped.
func (s *InMemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	s.windows.Range(func(k, _ any) bool {
		key := k.(string)
		s.locks.Lock(key)
		if v, ok := s.windows.Load(key); ok && !now.Before(v.(*counter).expiresAt) {
			s.windows.Delete(key)
			removed++
		}
		s.locks.Unlock(key)
		return true
	})
	return removed
}

// Len returns the number of tracked windows, expired or not.
func (s *InMemoryStore) Len() int {
	n := 0
	s.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func validateAdmit(key string, limit int, window time.Duration) error {
	if key == "" {
		return fmt.Errorf("rate limit key is required")
	}
	if limit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}

// DeleteExpired is Sweep in the shape the cleanup worker expects.
func (s *InMemoryStore) DeleteExpired(_ context.Context) (int, error) {
	return s.Sweep(), nil
}
