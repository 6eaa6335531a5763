package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

func TestLockoutStoreMatchesPolicy(t *testing.T) {
	store := NewLockoutStore()
	ctx := context.Background()
	policy := domain.LockoutPolicy{LockThreshold: 5, LockoutDuration: 15 * time.Minute, FailureWindow: 30 * time.Minute}
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	var outcomeLocked bool
	for i := 0; i < 5; i++ {
		out, err := store.RecordFailure(ctx, "id", base, policy)
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		outcomeLocked = out.NewlyLocked
	}
	if !outcomeLocked {
		t.Fatal("fifth failure should lock")
	}

	rec, ok, _ := store.Get(ctx, "id")
	if !ok || !rec.LockActive(base.Add(time.Minute)) {
		t.Fatalf("expected active lock, got %+v", rec)
	}

	out, _ := store.RecordFailure(ctx, "id", base.Add(20*time.Minute), policy)
	if out.Record.FailureCount != 1 || out.Record.LockedUntil != nil {
		t.Fatalf("elapsed lock must restart the count, got %+v", out.Record)
	}

	out, _ = store.RecordFailure(ctx, "id", base.Add(90*time.Minute), policy)
	if out.Record.FailureCount != 1 {
		t.Fatalf("stale failures must not accumulate, got %d", out.Record.FailureCount)
	}

	if err := store.Clear(ctx, "id"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "id"); ok {
		t.Fatal("expected record to be cleared")
	}
}

func TestLockoutStoreForgetsStaleFailures(t *testing.T) {
	store := NewLockoutStore()
	ctx := context.Background()
	policy := domain.LockoutPolicy{LockThreshold: 5, LockoutDuration: 15 * time.Minute, FailureWindow: 30 * time.Minute}
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if _, err := store.RecordFailure(ctx, "243812345678", base, policy); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	out, err := store.RecordFailure(ctx, "243812345678", base.Add(31*time.Minute), policy)
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if out.Record.FailureCount != 1 || out.NewlyLocked {
		t.Fatalf("failures outside the window must not count, got %+v", out)
	}
}

func TestDraftStoreLifecycle(t *testing.T) {
	store := NewDraftStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.WithClock(func() time.Time { return now })

	draft := domain.RegistrationDraft{ID: "d1", State: domain.RegistrationPhoneConfirmedAvailable, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	if err := store.Create(ctx, draft); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, draft); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	boom := errors.New("boom")
	if _, err := store.Update(ctx, "d1", func(d *domain.RegistrationDraft) error {
		d.State = domain.RegistrationOTPSent
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := store.Get(ctx, "d1")
	if got.State != domain.RegistrationPhoneConfirmedAvailable {
		t.Fatalf("aborted update leaked state %s", got.State)
	}

	store.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := store.Get(ctx, "d1"); !errors.Is(err, domain.ErrDraftExpired) {
		t.Fatalf("expected ErrDraftExpired, got %v", err)
	}
	if _, err := store.Get(ctx, "d1"); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Fatalf("expired draft should be dropped, got %v", err)
	}
}
