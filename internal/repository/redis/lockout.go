package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
)

const (
	defaultLockoutPrefix = "lockout"

	fieldFailureCount = "count"
	fieldLastFailure  = "last_failure"
	fieldLockedUntil  = "locked_until"
)

// recordFailureScript mirrors domain.LoginAttemptRecord.WithFailure so the
// increment and the lock decision happen in one round trip.
//
// KEYS[1] record key
// ARGV[1] now (unix ms), ARGV[2] lock threshold, ARGV[3] lockout (ms), ARGV[4] failure window (ms)
var recordFailureScript = red.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local lockout = tonumber(ARGV[3])
local window = tonumber(ARGV[4])

local count = tonumber(redis.call('HGET', key, 'count') or '0')
local locked = tonumber(redis.call('HGET', key, 'locked_until') or '0')
local last = tonumber(redis.call('HGET', key, 'last_failure') or '0')

local elapsed = locked > 0 and locked <= now
local stale = window > 0 and last > 0 and (now - last) >= window and not (locked > now)
if elapsed or stale then
  count = 0
  locked = 0
  redis.call('HDEL', key, 'locked_until')
end

count = count + 1
local newly = 0
if locked == 0 and threshold > 0 and count >= threshold then
  locked = now + lockout
  newly = 1
  redis.call('HSET', key, 'locked_until', locked)
end
redis.call('HSET', key, 'count', count)
redis.call('HSET', key, 'last_failure', now)

local ttl = window
if locked > 0 and (locked - now) > ttl then
  ttl = locked - now
end
if ttl > 0 then
  redis.call('PEXPIRE', key, ttl)
end

return {count, locked, newly}
`)

// LockoutRepository keeps login failure counters in Redis so every instance
// sees the same lock state.
type LockoutRepository struct {
	client *red.Client
	prefix string
}

// NewLockoutRepository constructs the shared lockout store.
func NewLockoutRepository(client *red.Client, keyPrefix string) *LockoutRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultLockoutPrefix
	}
	return &LockoutRepository{client: client, prefix: prefix}
}

// Get returns the stored record, if any.
func (r *LockoutRepository) Get(ctx context.Context, identifier string) (domain.LoginAttemptRecord, bool, error) {
	key := r.key(identifier)
	if key == "" {
		return domain.LoginAttemptRecord{}, false, errors.New("identifier is required")
	}

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.LoginAttemptRecord{}, false, fmt.Errorf("redis hgetall lockout: %w", err)
	}
	if len(values) == 0 {
		return domain.LoginAttemptRecord{}, false, nil
	}

	record := domain.LoginAttemptRecord{Identifier: identifier}
	if raw := values[fieldFailureCount]; raw != "" {
		count, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return domain.LoginAttemptRecord{}, false, fmt.Errorf("parse failure count: %w", convErr)
		}
		record.FailureCount = count
	}
	if last, ok, convErr := parseUnixMilli(values[fieldLastFailure]); convErr != nil {
		return domain.LoginAttemptRecord{}, false, fmt.Errorf("parse last failure: %w", convErr)
	} else if ok {
		record.LastFailureAt = last
	}
	if until, ok, convErr := parseUnixMilli(values[fieldLockedUntil]); convErr != nil {
		return domain.LoginAttemptRecord{}, false, fmt.Errorf("parse locked until: %w", convErr)
	} else if ok {
		record.LockedUntil = &until
	}

	return record, true, nil
}

// RecordFailure increments the counter and applies the lock decision atomically.
func (r *LockoutRepository) RecordFailure(ctx context.Context, identifier string, at time.Time, policy domain.LockoutPolicy) (port.FailureOutcome, error) {
	key := r.key(identifier)
	if key == "" {
		return port.FailureOutcome{}, errors.New("identifier is required")
	}

	raw, err := recordFailureScript.Run(ctx, r.client, []string{key},
		at.UnixMilli(),
		policy.LockThreshold,
		policy.LockoutDuration.Milliseconds(),
		policy.FailureWindow.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return port.FailureOutcome{}, fmt.Errorf("redis record failure: %w", err)
	}
	if len(raw) != 3 {
		return port.FailureOutcome{}, fmt.Errorf("redis record failure: unexpected reply %v", raw)
	}

	record := domain.LoginAttemptRecord{
		Identifier:    identifier,
		FailureCount:  int(raw[0]),
		LastFailureAt: time.UnixMilli(at.UnixMilli()).UTC(),
	}
	if raw[1] > 0 {
		until := time.UnixMilli(raw[1]).UTC()
		record.LockedUntil = &until
	}

	return port.FailureOutcome{Record: record, NewlyLocked: raw[2] == 1}, nil
}

// Clear removes the record after a successful sign-in.
func (r *LockoutRepository) Clear(ctx context.Context, identifier string) error {
	key := r.key(identifier)
	if key == "" {
		return errors.New("identifier is required")
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete lockout: %w", err)
	}
	return nil
}

func (r *LockoutRepository) key(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, identifier)
}

func parseUnixMilli(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return time.Time{}, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(v).UTC(), true, nil
}

var _ port.LoginAttemptStore = (*LockoutRepository)(nil)
