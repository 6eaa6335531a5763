package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

const defaultOTPPrefix = "otp"

// checkScript settles a guess atomically so parallel guesses cannot share one
// read of the attempt counter. Reply is {outcome, attempts} using the
// domain.OTPOutcome values.
var checkScript = red.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code then
  return {0, 0}
end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts')) or 0
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires'))
if expires and expires <= tonumber(ARGV[3]) then
  redis.call('DEL', KEYS[1])
  return {0, attempts}
end
local max = tonumber(ARGV[2])
if attempts >= max then
  redis.call('DEL', KEYS[1])
  return {3, attempts}
end
if code == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return {1, attempts}
end
attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if attempts >= max then
  redis.call('DEL', KEYS[1])
  return {3, attempts}
end
return {2, attempts}
`)

// OTPRepository keeps one pending code per purpose and phone as a hash:
// code (sha256 hex), attempts, created and expires (unix ms).
type OTPRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

func NewOTPRepository(client *red.Client, keyPrefix string) *OTPRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOTPPrefix
	}
	return &OTPRepository{client: client, prefix: prefix, now: time.Now}
}

// WithClock is for tests.
func (r *OTPRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Store replaces whatever code was pending, so a resend resets the attempts.
func (r *OTPRepository) Store(ctx context.Context, purpose, identifier, codeHash string, ttl time.Duration) (domain.OTPRecord, error) {
	key, err := r.key(purpose, identifier)
	if err != nil {
		return domain.OTPRecord{}, err
	}
	if strings.TrimSpace(codeHash) == "" {
		return domain.OTPRecord{}, errors.New("otp: code hash is required")
	}
	if ttl <= 0 {
		return domain.OTPRecord{}, fmt.Errorf("otp: ttl must be positive, got %s", ttl)
	}

	record := domain.OTPRecord{
		Purpose:    strings.TrimSpace(purpose),
		Identifier: strings.TrimSpace(identifier),
		Code:       codeHash,
		CreatedAt:  r.now().UTC().Truncate(time.Millisecond),
	}
	record.ExpiresAt = record.CreatedAt.Add(ttl)

	_, err = r.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", record.Code,
			"attempts", 0,
			"created", record.CreatedAt.UnixMilli(),
			"expires", record.ExpiresAt.UnixMilli(),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return domain.OTPRecord{}, fmt.Errorf("redis store otp: %w", err)
	}
	return record, nil
}

// Check settles one guess. An expired code is removed and reported missing.
func (r *OTPRepository) Check(ctx context.Context, purpose, identifier, codeHash string, maxAttempts int, now time.Time) (domain.OTPCheck, error) {
	key, err := r.key(purpose, identifier)
	if err != nil {
		return domain.OTPCheck{}, err
	}
	if maxAttempts <= 0 {
		return domain.OTPCheck{}, fmt.Errorf("otp: max attempts must be positive, got %d", maxAttempts)
	}

	reply, err := checkScript.Run(ctx, r.client, []string{key}, codeHash, maxAttempts, now.UnixMilli()).Int64Slice()
	if err != nil {
		return domain.OTPCheck{}, fmt.Errorf("redis check otp: %w", err)
	}
	if len(reply) != 2 {
		return domain.OTPCheck{}, fmt.Errorf("redis check otp: unexpected reply %v", reply)
	}
	return domain.OTPCheck{Outcome: domain.OTPOutcome(reply[0]), Attempts: int(reply[1])}, nil
}

// Delete consumes the code.
func (r *OTPRepository) Delete(ctx context.Context, purpose, identifier string) error {
	key, err := r.key(purpose, identifier)
	if err != nil {
		return err
	}
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *OTPRepository) key(purpose, identifier string) (string, error) {
	purpose, identifier = strings.TrimSpace(purpose), strings.TrimSpace(identifier)
	if purpose == "" || identifier == "" {
		return "", errors.New("otp: purpose and identifier are required")
	}
	return r.prefix + ":" + purpose + ":" + identifier, nil
}

var _ port.OTPCodeStore = (*OTPRepository)(nil)
