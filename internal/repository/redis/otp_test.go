package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

const otpKey = "otp:registration:243812345678"

func TestOTPRepository_StoreCheckDelete(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.WithClock(func() time.Time { return base })
	ctx := context.Background()

	stored, err := repo.Store(ctx, "registration", "243812345678", "hash-1", 5*time.Minute)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !stored.ExpiresAt.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", stored.ExpiresAt)
	}
	if ttl := server.TTL(otpKey); ttl != 5*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	check, err := repo.Check(ctx, "registration", "243812345678", "wrong", 5, base)
	if err != nil || check.Outcome != domain.OTPMismatched || check.Attempts != 1 {
		t.Fatalf("Check(wrong) = %+v, %v", check, err)
	}
	if got := server.HGet(otpKey, "attempts"); got != "1" {
		t.Fatalf("attempts = %q, want 1", got)
	}

	if _, err := repo.Store(ctx, "registration", "243812345678", "hash-2", 5*time.Minute); err != nil {
		t.Fatalf("re-Store: %v", err)
	}
	if server.HGet(otpKey, "code") != "hash-2" || server.HGet(otpKey, "attempts") != "0" {
		t.Fatal("resend must replace code and reset attempts")
	}

	check, err = repo.Check(ctx, "registration", "243812345678", "hash-2", 5, base)
	if err != nil || check.Outcome != domain.OTPMatched {
		t.Fatalf("Check(match) = %+v, %v", check, err)
	}
	if server.Exists(otpKey) {
		t.Fatal("matched code must be consumed")
	}
	check, _ = repo.Check(ctx, "registration", "243812345678", "hash-2", 5, base)
	if check.Outcome != domain.OTPMissing {
		t.Fatalf("second match must see no code, got %+v", check)
	}
	if err := repo.Delete(ctx, "registration", "243812345678"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOTPRepository_CheckExhaustsAndExpires(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.WithClock(func() time.Time { return base })
	ctx := context.Background()

	if _, err := repo.Store(ctx, "registration", "243812345678", "hash", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}
	for i := 1; i < 3; i++ {
		if check, _ := repo.Check(ctx, "registration", "243812345678", "nope", 3, base); check.Outcome != domain.OTPMismatched {
			t.Fatalf("guess %d: %+v", i, check)
		}
	}
	if check, _ := repo.Check(ctx, "registration", "243812345678", "nope", 3, base); check.Outcome != domain.OTPExhausted || check.Attempts != 3 {
		t.Fatalf("third wrong guess should exhaust, got %+v", check)
	}
	if server.Exists(otpKey) {
		t.Fatal("exhausted code must be removed")
	}

	if _, err := repo.Store(ctx, "registration", "243812345678", "hash", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}
	check, err := repo.Check(ctx, "registration", "243812345678", "hash", 3, base.Add(time.Minute))
	if err != nil || check.Outcome != domain.OTPMissing {
		t.Fatalf("expired code: %+v, %v", check, err)
	}
	if server.Exists(otpKey) {
		t.Fatal("expired code must be removed")
	}
}

func TestOTPRepository_ParallelGuessesRespectCap(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")
	now := time.Now()
	ctx := context.Background()

	if _, err := repo.Store(ctx, "registration", "243812345678", "hash", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[domain.OTPOutcome]int{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check, err := repo.Check(ctx, "registration", "243812345678", "wrong", 5, now)
			if err != nil {
				t.Errorf("Check: %v", err)
				return
			}
			mu.Lock()
			outcomes[check.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if outcomes[domain.OTPMismatched] != 4 || outcomes[domain.OTPExhausted] != 1 || outcomes[domain.OTPMissing] != 15 {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
	if server.Exists(otpKey) {
		t.Fatal("code must be gone after the cap")
	}
}

func TestOTPRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewOTPRepository(client, "")
	ctx := context.Background()

	if _, err := repo.Store(ctx, "", "id", "hash", time.Minute); err == nil {
		t.Fatal("expected error for missing purpose")
	}
	if _, err := repo.Store(ctx, "p", "id", "hash", 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
	if _, err := repo.Check(ctx, "p", "id", "hash", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero max attempts")
	}
}

func TestOTPRepository_CheckAfterTTLDoesNotRecreate(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewOTPRepository(client, "otp")
	ctx := context.Background()

	if _, err := repo.Store(ctx, "registration", "243991234567", "hash", time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}
	server.FastForward(2 * time.Minute)

	check, err := repo.Check(ctx, "registration", "243991234567", "wrong", 5, time.Now())
	if err != nil || check.Outcome != domain.OTPMissing {
		t.Fatalf("expected missing, got %+v, %v", check, err)
	}
	if server.Exists("otp:registration:243991234567") {
		t.Fatal("check must not leave a partial record behind")
	}
}
