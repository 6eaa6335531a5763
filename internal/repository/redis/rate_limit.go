package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
)

const defaultRateLimitPrefix = "ratelimit"

// takeScript keeps one sorted set per key, scored by attempt time in ms.
//
// KEYS[1] window key
// ARGV[1] now (unix ms), ARGV[2] window (ms), ARGV[3] limit, ARGV[4] member
var takeScript = red.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local first = now
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  first = tonumber(oldest[2])
end
return {count, allowed, first}
`)

// RateLimitRepository backs the HTTP limiter and the reset limiter.
type RateLimitRepository struct {
	client *red.Client
	prefix string
}

func NewRateLimitRepository(client *red.Client, prefix string) *RateLimitRepository {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	return &RateLimitRepository{client: client, prefix: prefix}
}

// Take admits one attempt for key unless limit attempts already fall inside
// window. Rejected attempts are not recorded.
func (r *RateLimitRepository) Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (port.RateWindow, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return port.RateWindow{}, errors.New("rate limit key is required")
	}
	if window < time.Millisecond || limit <= 0 {
		return port.RateWindow{}, fmt.Errorf("invalid rate window: limit %d over %s", limit, window)
	}

	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8])
	raw, err := takeScript.Run(ctx, r.client, []string{r.prefix + ":" + key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		member,
	).Int64Slice()
	if err != nil {
		return port.RateWindow{}, fmt.Errorf("redis rate limit take: %w", err)
	}
	if len(raw) != 3 {
		return port.RateWindow{}, fmt.Errorf("redis rate limit take: unexpected reply %v", raw)
	}

	return port.RateWindow{
		Count:   int(raw[0]),
		Allowed: raw[1] == 1,
		Reset:   time.UnixMilli(raw[2]).Add(window).UTC(),
	}, nil
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
