package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/telemetry"
)

// AttemptMeta carries request details recorded in the login audit trail.
type AttemptMeta struct {
	UserID    string
	IP        string
	UserAgent string
}

// LockoutTracker throttles sign-in per normalized identifier.
type LockoutTracker struct {
	store   port.LoginAttemptStore
	audit   port.LoginAuditRepository
	events  port.EventPublisher
	metrics *telemetry.Metrics
	policy  domain.LockoutPolicy
	now     func() time.Time
	log     *zap.Logger
}

// LockoutOption customises a LockoutTracker.
type LockoutOption func(*LockoutTracker)

func WithLockoutClock(now func() time.Time) LockoutOption {
	return func(t *LockoutTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLockoutAudit appends every attempt to the audit trail.
func WithLockoutAudit(audit port.LoginAuditRepository) LockoutOption {
	return func(t *LockoutTracker) { t.audit = audit }
}

func WithLockoutEvents(events port.EventPublisher) LockoutOption {
	return func(t *LockoutTracker) { t.events = events }
}

func WithLockoutMetrics(m *telemetry.Metrics) LockoutOption {
	return func(t *LockoutTracker) { t.metrics = m }
}

func WithLockoutLogger(log *zap.Logger) LockoutOption {
	return func(t *LockoutTracker) {
		if log != nil {
			t.log = log
		}
	}
}

// LockoutPolicyFromConfig maps the lockout settings onto the domain policy.
func LockoutPolicyFromConfig(cfg config.LockoutSettings) domain.LockoutPolicy {
	return domain.LockoutPolicy{
		WarnThreshold:   cfg.WarnThreshold,
		LockThreshold:   cfg.LockThreshold,
		LockoutDuration: cfg.LockoutDuration,
		FailureWindow:   cfg.FailureWindow,
		DelayAfter:      cfg.DelayAfter,
		BaseDelay:       cfg.BaseDelay,
		MaxDelay:        cfg.MaxDelay,
	}
}

func NewLockoutTracker(store port.LoginAttemptStore, policy domain.LockoutPolicy, opts ...LockoutOption) *LockoutTracker {
	t := &LockoutTracker{
		store:  store,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the thresholds in effect.
func (t *LockoutTracker) Policy() domain.LockoutPolicy {
	return t.policy
}

// NormalizeIdentifier lower-cases and trims an email or canonical phone.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// RecordAttempt clears the record on success and counts a failure otherwise.
// It returns the status after the attempt.
func (t *LockoutTracker) RecordAttempt(ctx context.Context, identifier string, success bool, meta AttemptMeta) (domain.SecurityStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "lockout.RecordAttempt")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	identifier = NormalizeIdentifier(identifier)
	if identifier == "" {
		err = domain.NewValidationError("identifier", fmt.Errorf("identifier is required"))
		return domain.SecurityStatus{}, err
	}
	now := t.now()

	if success {
		if err = t.store.Clear(ctx, identifier); err != nil {
			return domain.SecurityStatus{}, fmt.Errorf("clear login attempts: %w", err)
		}
		t.recordAudit(ctx, identifier, true, false, meta, now)
		return t.status(domain.LoginAttemptRecord{Identifier: identifier}, now), nil
	}

	outcome, err := t.store.RecordFailure(ctx, identifier, now, t.policy)
	if err != nil {
		return domain.SecurityStatus{}, fmt.Errorf("record login failure: %w", err)
	}
	t.recordAudit(ctx, identifier, false, outcome.NewlyLocked, meta, now)

	if outcome.NewlyLocked {
		t.metrics.ObserveLockout()
		t.publishLocked(ctx, outcome.Record, meta, now)
	}

	return t.status(outcome.Record, now), nil
}

// GetSecurityStatus reports the current state without mutating it. A lock whose
// window has passed reads as clear.
func (t *LockoutTracker) GetSecurityStatus(ctx context.Context, identifier string) (domain.SecurityStatus, error) {
	identifier = NormalizeIdentifier(identifier)
	record, found, err := t.store.Get(ctx, identifier)
	if err != nil {
		return domain.SecurityStatus{}, fmt.Errorf("load login attempts: %w", err)
	}
	if !found {
		record = domain.LoginAttemptRecord{Identifier: identifier}
	}
	return t.status(record, t.now()), nil
}

// ShouldDelayLogin returns the progressive soft delay that applies before the
// hard lock: base_delay doubled per failure past delay_after, capped at
// max_delay and measured from the last failure.
func (t *LockoutTracker) ShouldDelayLogin(ctx context.Context, identifier string) (domain.LoginDelay, error) {
	identifier = NormalizeIdentifier(identifier)
	record, found, err := t.store.Get(ctx, identifier)
	if err != nil {
		return domain.LoginDelay{}, fmt.Errorf("load login attempts: %w", err)
	}
	if !found {
		return domain.LoginDelay{}, nil
	}
	return t.delay(record, t.now()), nil
}

// Check rejects the attempt with a *domain.ThrottleError while locked or delayed.
func (t *LockoutTracker) Check(ctx context.Context, identifier string) (domain.SecurityStatus, error) {
	identifier = NormalizeIdentifier(identifier)
	record, found, err := t.store.Get(ctx, identifier)
	if err != nil {
		return domain.SecurityStatus{}, fmt.Errorf("load login attempts: %w", err)
	}
	if !found {
		record = domain.LoginAttemptRecord{Identifier: identifier}
	}

	now := t.now()
	status := t.status(record, now)
	if status.Locked {
		return status, &domain.ThrottleError{Locked: true, RetryAfter: status.RemainingLockTime}
	}
	if d := t.delay(record, now); d.Delay {
		return status, &domain.ThrottleError{RetryAfter: d.Remaining, RemainingAttempts: status.RemainingAttempts}
	}
	return status, nil
}

func (t *LockoutTracker) status(record domain.LoginAttemptRecord, now time.Time) domain.SecurityStatus {
	if record.LockActive(now) {
		return domain.SecurityStatus{
			State:             domain.LockoutLocked,
			Locked:            true,
			FailureCount:      record.FailureCount,
			RemainingAttempts: 0,
			RemainingLockTime: record.LockedUntil.Sub(now),
		}
	}

	count := record.FailureCount
	if record.LockElapsed(now) || record.Stale(now, t.policy) {
		count = 0
	}

	remaining := t.policy.LockThreshold - count
	if remaining < 0 {
		remaining = 0
	}
	state := domain.LockoutClear
	if t.policy.WarnThreshold > 0 && count >= t.policy.WarnThreshold {
		state = domain.LockoutWarned
	}
	return domain.SecurityStatus{
		State:             state,
		FailureCount:      count,
		RemainingAttempts: remaining,
	}
}

func (t *LockoutTracker) delay(record domain.LoginAttemptRecord, now time.Time) domain.LoginDelay {
	if record.LockActive(now) || record.LockElapsed(now) || record.Stale(now, t.policy) {
		return domain.LoginDelay{}
	}
	if t.policy.BaseDelay <= 0 || record.FailureCount < t.policy.DelayAfter || record.LastFailureAt.IsZero() {
		return domain.LoginDelay{}
	}

	wait := t.policy.BaseDelay
	for i := t.policy.DelayAfter; i < record.FailureCount; i++ {
		wait *= 2
		if t.policy.MaxDelay > 0 && wait >= t.policy.MaxDelay {
			wait = t.policy.MaxDelay
			break
		}
	}
	if t.policy.MaxDelay > 0 && wait > t.policy.MaxDelay {
		wait = t.policy.MaxDelay
	}

	remaining := record.LastFailureAt.Add(wait).Sub(now)
	if remaining <= 0 {
		return domain.LoginDelay{}
	}
	return domain.LoginDelay{Delay: true, Remaining: remaining}
}

func (t *LockoutTracker) recordAudit(ctx context.Context, identifier string, success, locked bool, meta AttemptMeta, at time.Time) {
	if t.audit == nil {
		return
	}
	attempt := domain.LoginAttempt{
		ID:         uuid.NewString(),
		Identifier: identifier,
		UserID:     optionalString(meta.UserID),
		Succeeded:  success,
		Locked:     locked,
		IP:         optionalString(meta.IP),
		UserAgent:  optionalString(meta.UserAgent),
		CreatedAt:  at,
	}
	if err := t.audit.Record(ctx, attempt); err != nil {
		logger.WithContext(ctx).Warn("login audit write failed",
			zap.String("identifier", logger.MaskIdentifier(identifier)),
			zap.Error(err),
		)
	}
}

func (t *LockoutTracker) publishLocked(ctx context.Context, record domain.LoginAttemptRecord, meta AttemptMeta, now time.Time) {
	t.log.Warn("login locked",
		zap.String("identifier", logger.MaskIdentifier(record.Identifier)),
		zap.Int("failures", record.FailureCount),
	)
	if t.events == nil || record.LockedUntil == nil {
		return
	}
	event := domain.LoginLockedEvent{
		EventID:      uuid.NewString(),
		Identifier:   record.Identifier,
		FailureCount: record.FailureCount,
		LockedAt:     now,
		LockedUntil:  *record.LockedUntil,
		IPAddress:    optionalString(meta.IP),
	}
	if err := t.events.PublishLoginLocked(ctx, event); err != nil {
		t.log.Warn("publish login locked event failed", zap.Error(err))
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
