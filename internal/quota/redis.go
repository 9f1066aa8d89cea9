package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// takeScript prunes, counts and conditionally records in one round trip.
// Scores are unix milliseconds. Returns {allowed, count, retryAfterMillis}.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local retry = window
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, count, retry}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisStore shares quota state between replicas through one sorted set per
// identity.
type RedisStore struct {
	client redis.Scripter
	policy Policy
	prefix string
}

func NewRedisStore(client redis.Scripter, policy Policy, prefix string) *RedisStore {
	return &RedisStore{client: client, policy: policy, prefix: prefix}
}

func (s *RedisStore) Take(ctx context.Context, identity string, now time.Time) (Decision, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := takeScript.Run(ctx, s.client,
		[]string{s.prefix + identity},
		nowMs, s.policy.Window.Milliseconds(), s.policy.Limit, member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis quota check failed: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis quota check returned %d values", len(res))
	}

	return Decision{
		Allowed:    res[0] == 1,
		Count:      int(res[1]),
		Limit:      s.policy.Limit,
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
