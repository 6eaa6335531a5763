package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository/memory"
)

var testLockoutPolicy = domain.LockoutPolicy{
	WarnThreshold:   3,
	LockThreshold:   5,
	LockoutDuration: 15 * time.Minute,
	FailureWindow:   30 * time.Minute,
	DelayAfter:      2,
	BaseDelay:       2 * time.Second,
	MaxDelay:        30 * time.Second,
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(clock *testClock, opts ...LockoutOption) *LockoutTracker {
	opts = append([]LockoutOption{WithLockoutClock(clock.Now)}, opts...)
	return NewLockoutTracker(memory.NewLockoutStore(), testLockoutPolicy, opts...)
}

func TestLockoutTracker_SuccessResetsCount(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	tracker := newTestTracker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{}); err != nil {
			t.Fatalf("RecordAttempt failure %d: %v", i, err)
		}
	}
	status, err := tracker.GetSecurityStatus(ctx, "243812345678")
	if err != nil {
		t.Fatalf("GetSecurityStatus: %v", err)
	}
	if status.FailureCount != 4 || status.State != domain.LockoutWarned || status.RemainingAttempts != 1 {
		t.Fatalf("unexpected status after 4 failures: %+v", status)
	}

	if _, err := tracker.RecordAttempt(ctx, "243812345678", true, AttemptMeta{}); err != nil {
		t.Fatalf("RecordAttempt success: %v", err)
	}
	status, _ = tracker.GetSecurityStatus(ctx, "243812345678")
	if status.FailureCount != 0 || status.Locked || status.State != domain.LockoutClear {
		t.Fatalf("expected clear status after success, got %+v", status)
	}
}

func TestLockoutTracker_FailuresOutsideWindowExpire(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	tracker := newTestTracker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{}); err != nil {
			t.Fatalf("RecordAttempt failure %d: %v", i, err)
		}
	}

	clock.Advance(31 * time.Minute)
	status, err := tracker.GetSecurityStatus(ctx, "243812345678")
	if err != nil {
		t.Fatalf("GetSecurityStatus: %v", err)
	}
	if status.FailureCount != 0 || status.State != domain.LockoutClear {
		t.Fatalf("stale failures should read as clear, got %+v", status)
	}
	if d, _ := tracker.ShouldDelayLogin(ctx, "243812345678"); d.Delay {
		t.Fatalf("stale failures must not delay, got %+v", d)
	}

	status, err = tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if status.FailureCount != 1 || status.State != domain.LockoutClear || status.RemainingAttempts != 4 {
		t.Fatalf("expected a fresh count of 1, got %+v", status)
	}
}

func TestLockoutTracker_LocksAtThreshold(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	publisher := &recordingPublisher{}
	audit := &fakeAudit{}
	tracker := newTestTracker(clock, WithLockoutEvents(publisher), WithLockoutAudit(audit))
	ctx := context.Background()

	var status domain.SecurityStatus
	var err error
	for i := 0; i < 5; i++ {
		status, err = tracker.RecordAttempt(ctx, "jean@example.com", false, AttemptMeta{IP: "10.0.0.1"})
		if err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if !status.Locked || status.RemainingAttempts != 0 || status.State != domain.LockoutLocked {
		t.Fatalf("expected locked status, got %+v", status)
	}
	if status.RemainingLockTime != 15*time.Minute {
		t.Fatalf("remaining lock time = %s, want 15m", status.RemainingLockTime)
	}
	if len(publisher.locked) != 1 || publisher.locked[0].FailureCount != 5 {
		t.Fatalf("expected one lock event, got %+v", publisher.locked)
	}
	if len(audit.attempts) != 5 || !audit.attempts[4].Locked {
		t.Fatalf("expected 5 audit rows with the last marked locked, got %+v", audit.attempts)
	}

	_, err = tracker.Check(ctx, "JEAN@example.com ")
	var throttle *domain.ThrottleError
	if !errors.As(err, &throttle) || !throttle.Locked {
		t.Fatalf("expected locked throttle error, got %v", err)
	}
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("throttle error must unwrap to ErrAccountLocked")
	}
}

func TestLockoutTracker_LockClearsLazily(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	tracker := newTestTracker(clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{})
	}
	clock.Advance(15*time.Minute + time.Second)

	status, err := tracker.GetSecurityStatus(ctx, "243812345678")
	if err != nil {
		t.Fatalf("GetSecurityStatus: %v", err)
	}
	if status.Locked || status.RemainingAttempts != 5 {
		t.Fatalf("expected lock to read as cleared, got %+v", status)
	}
	if _, err := tracker.Check(ctx, "243812345678"); err != nil {
		t.Fatalf("Check after expiry: %v", err)
	}

	// The next failure starts a fresh count.
	status, _ = tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{})
	if status.FailureCount != 1 || status.Locked {
		t.Fatalf("expected fresh count after elapsed lock, got %+v", status)
	}
}

func TestLockoutTracker_ShouldDelayLogin(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	tracker := newTestTracker(clock)
	ctx := context.Background()

	_, _ = tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{})
	delay, _ := tracker.ShouldDelayLogin(ctx, "243812345678")
	if delay.Delay {
		t.Fatalf("no delay expected after one failure, got %+v", delay)
	}

	_, _ = tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{})
	delay, _ = tracker.ShouldDelayLogin(ctx, "243812345678")
	if !delay.Delay || delay.Seconds() != 2 {
		t.Fatalf("expected 2s delay after two failures, got %+v", delay)
	}

	_, _ = tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{})
	delay, _ = tracker.ShouldDelayLogin(ctx, "243812345678")
	if delay.Seconds() != 4 {
		t.Fatalf("expected 4s delay after three failures, got %d", delay.Seconds())
	}

	_, err := tracker.Check(ctx, "243812345678")
	var throttle *domain.ThrottleError
	if !errors.As(err, &throttle) || throttle.Locked || throttle.RemainingAttempts != 2 {
		t.Fatalf("expected soft delay throttle, got %v", err)
	}

	clock.Advance(5 * time.Second)
	delay, _ = tracker.ShouldDelayLogin(ctx, "243812345678")
	if delay.Delay {
		t.Fatalf("delay should have elapsed, got %+v", delay)
	}
}

func TestLockoutTracker_DelayIsCapped(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	policy := testLockoutPolicy
	policy.LockThreshold = 20
	policy.WarnThreshold = 10
	tracker := NewLockoutTracker(memory.NewLockoutStore(), policy, WithLockoutClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, _ = tracker.RecordAttempt(ctx, "243812345678", false, AttemptMeta{})
	}
	delay, _ := tracker.ShouldDelayLogin(ctx, "243812345678")
	if delay.Seconds() != 30 {
		t.Fatalf("expected delay capped at 30s, got %d", delay.Seconds())
	}
}

func TestLockoutTracker_AuditFailureIsIgnored(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	tracker := newTestTracker(clock, WithLockoutAudit(&fakeAudit{err: errBoom}))

	if _, err := tracker.RecordAttempt(context.Background(), "243812345678", false, AttemptMeta{}); err != nil {
		t.Fatalf("audit failure must not fail the attempt: %v", err)
	}
}

func TestLockoutTracker_RejectsEmptyIdentifier(t *testing.T) {
	tracker := newTestTracker(&testClock{now: time.Now()})

	_, err := tracker.RecordAttempt(context.Background(), "  ", false, AttemptMeta{})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
