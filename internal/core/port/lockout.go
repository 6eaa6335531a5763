package port

import (
	"context"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// FailureOutcome is the state after a failed attempt was recorded.
type FailureOutcome struct {
	Record      domain.LoginAttemptRecord
	NewlyLocked bool
}

// LoginAttemptStore persists per-identifier failure counters. RecordFailure must
// apply the increment and lock decision atomically.
type LoginAttemptStore interface {
	Get(ctx context.Context, identifier string) (domain.LoginAttemptRecord, bool, error)
	RecordFailure(ctx context.Context, identifier string, at time.Time, policy domain.LockoutPolicy) (FailureOutcome, error)
	Clear(ctx context.Context, identifier string) error
}
