package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// tokenBucket refills at rate tokens per minute up to capacity and takes one.
// KEYS[1] bucket, ARGV: now ms, capacity, rate per minute.
var tokenBucket = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * rate / 60000)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', key, math.ceil(capacity / rate * 60000) + 1000)
return allowed
`)

// RedisLimiter is a token bucket shared by every API instance.
type RedisLimiter struct {
	rdb      *goredis.Client
	capacity int
	rate     int // tokens per minute
	now      func() time.Time
}

func NewRedisLimiter(rdb *goredis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, capacity: perMinute, rate: perMinute, now: time.Now}
}

// NewRedisClient parses url (redis://...) and pings the server.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Close releases the Redis client.
func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := tokenBucket.Run(ctx, l.rdb,
		[]string{"rate_limit:" + key},
		l.now().UnixMilli(),
		l.capacity,
		l.rate,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return allowed == 1, nil
}
