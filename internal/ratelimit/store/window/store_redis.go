package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"diyetlenio/internal/ratelimit/models"
)

// admitScript performs the fixed-window check and increment in one server-side step.
// Returns {count, admitted (0|1), ttl_ms}.
var admitScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

if current >= limit then
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], window)
		ttl = window
	end
	return {current, 0, ttl}
end

current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], window)
	ttl = window
end
return {current, 1, ttl}
`)

// RedisStore keeps fixed-window counters in Redis with native key expiry.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Admit(ctx context.Context, key string, limit int, window time.Duration) (models.WindowState, error) {
	if err := validateAdmit(key, limit, window); err != nil {
		return models.WindowState{}, err
	}

	res, err := admitScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return models.WindowState{}, fmt.Errorf("admit rate limit window: %w", err)
	}
	if len(res) != 3 {
		return models.WindowState{}, fmt.Errorf("admit rate limit window: unexpected reply length %d", len(res))
	}

	return models.WindowState{
		Count:    int(res[0]),
		Admitted: res[1] == 1,
		TTL:      time.Duration(res[2]) * time.Millisecond,
	}, nil
}

func (s *RedisStore) Peek(ctx context.Context, key string) (models.WindowState, error) {
	if key == "" {
		return models.WindowState{}, fmt.Errorf("rate limit key is required")
	}

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return models.WindowState{}, fmt.Errorf("peek rate limit window: %w", err)
	}

	count, err := getCmd.Int()
	if errors.Is(err, redis.Nil) {
		return models.WindowState{}, nil
	}
	if err != nil {
		return models.WindowState{}, fmt.Errorf("read rate limit count: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return models.WindowState{Count: count, TTL: ttl}, nil
}
