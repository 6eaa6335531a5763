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

func newDraft(id string, now time.Time) domain.RegistrationDraft {
	return domain.RegistrationDraft{
		ID:         id,
		State:      domain.RegistrationOTPVerified,
		Phone:      "243812345678",
		CountryISO: "CD",
		City:       "Kinshasa",
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
	}
}

func TestDraftRepository_CreateGetDelete(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewDraftRepository(client, "draft")
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newDraft("d1", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, newDraft("d1", now)); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	if ttl := server.TTL("draft:d1"); ttl <= 29*time.Minute || ttl > 30*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := repo.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.City != "Kinshasa" || got.State != domain.RegistrationOTPVerified {
		t.Fatalf("unexpected draft %+v", got)
	}

	if err := repo.Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "d1"); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}
}

func TestDraftRepository_UpdateKeepsTTLAndAborts(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewDraftRepository(client, "draft")
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newDraft("d2", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := repo.Update(ctx, "d2", func(d *domain.RegistrationDraft) error {
		d.State = domain.RegistrationCreatingAccount
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.State != domain.RegistrationCreatingAccount {
		t.Fatalf("unexpected state %s", updated.State)
	}
	if ttl := server.TTL("draft:d2"); ttl <= 0 {
		t.Fatalf("update must keep ttl, got %v", ttl)
	}

	boom := errors.New("boom")
	if _, err := repo.Update(ctx, "d2", func(d *domain.RegistrationDraft) error {
		d.City = "Lubumbashi"
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	got, _ := repo.Get(ctx, "d2")
	if got.City != "Kinshasa" {
		t.Fatalf("aborted update must not be written, city=%s", got.City)
	}
}

func TestDraftRepository_ConcurrentClaimSucceedsOnce(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewDraftRepository(client, "draft")
	ctx := context.Background()

	if err := repo.Create(ctx, newDraft("d3", time.Now().UTC())); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claim := func(d *domain.RegistrationDraft) error {
		if d.State != domain.RegistrationOTPVerified {
			return domain.ErrInvalidTransition
		}
		d.State = domain.RegistrationCreatingAccount
		return nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Update(ctx, "d3", claim); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", success)
	}
}

func TestDraftRepository_ExpiredDraft(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewDraftRepository(client, "draft")
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newDraft("d4", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.WithClock(func() time.Time { return now.Add(31 * time.Minute) })

	if _, err := repo.Get(ctx, "d4"); !errors.Is(err, domain.ErrDraftExpired) {
		t.Fatalf("expected ErrDraftExpired, got %v", err)
	}

	past := newDraft("d5", now.Add(-time.Hour))
	if err := repo.Create(ctx, past); !errors.Is(err, domain.ErrDraftExpired) {
		t.Fatalf("expected ErrDraftExpired on create, got %v", err)
	}
}
