package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// incrWindowScript increments a counter and starts its expiry only when the
// window opens. A key left without a TTL is repaired on the next hit.
var incrWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisCounter is a Counter shared by every instance pointing at the same
// Redis
type RedisCounter struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCounter creates a Redis-backed counter
func NewRedisCounter(redisClient *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisCounter{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

// Incr implements Counter
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	redisKey := fmt.Sprintf("%s:%s", c.prefix, key)

	res, err := incrWindowScript.Run(ctx, c.redis, []string{redisKey}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis rate limit counter: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("redis rate limit counter: unexpected reply %v", res)
	}

	count, ok1 := res[0].(int64)
	ttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return 0, time.Time{}, fmt.Errorf("redis rate limit counter: unexpected reply %v", res)
	}

	return count, c.now().Add(time.Duration(ttl) * time.Millisecond), nil
}

// HealthCheck verifies Redis connectivity for rate limiting
func (c *RedisCounter) HealthCheck(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}
