package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "chat-relay:ratelimit:"

// Scores are unix microseconds. The key expires one window after the last
// accepted request.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, tonumber(ARGV[5]))
return {1, count + 1, 0}
`)

func ttlMillis(window time.Duration) int64 {
	ms := window.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}

// RedisStore shares request windows between replicas through Redis sorted sets.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Result, error) {
	member := fmt.Sprintf("%d-%s", now.UnixMicro(), uuid.NewString())

	vals, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMicro(), window.Microseconds(), limit, member, ttlMillis(window),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("sliding window script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("sliding window script: unexpected reply length %d", len(vals))
	}

	res := Result{Allowed: vals[0] == 1, Count: int(vals[1])}
	if !res.Allowed {
		res.Oldest = time.UnixMicro(vals[2])
	}
	return res, nil
}
