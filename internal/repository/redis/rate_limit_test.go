package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_TakeSlidesWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, "rl")
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	for i := 0; i < 3; i++ {
		w, err := repo.Take(ctx, "login:10.0.0.1", 3, window, base.Add(time.Duration(i)*20*time.Second))
		if err != nil {
			t.Fatalf("Take %d: %v", i, err)
		}
		if !w.Allowed || w.Count != i+1 {
			t.Fatalf("attempt %d: %+v", i, w)
		}
	}
	if ttl := server.TTL("rl:login:10.0.0.1"); ttl != window {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	rejected, err := repo.Take(ctx, "login:10.0.0.1", 3, window, base.Add(50*time.Second))
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if rejected.Allowed || rejected.Count != 3 {
		t.Fatalf("fourth attempt must be rejected, got %+v", rejected)
	}
	if got := rejected.RetryAfter(base.Add(50 * time.Second)); got != 10*time.Second {
		t.Fatalf("retry after = %v, want 10s", got)
	}

	// The first attempt has left the window; the rejected one was never stored.
	later := base.Add(70 * time.Second)
	admitted, err := repo.Take(ctx, "login:10.0.0.1", 3, window, later)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !admitted.Allowed || admitted.Count != 3 {
		t.Fatalf("expected admission after slide, got %+v", admitted)
	}
	if !admitted.Reset.Equal(base.Add(80 * time.Second)) {
		t.Fatalf("reset = %v", admitted.Reset)
	}
}

func TestRateLimitRepository_TakeRejectsBadInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "")
	now := time.Now()

	if _, err := repo.Take(context.Background(), "x", 5, 0, now); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := repo.Take(context.Background(), " ", 5, time.Minute, now); err == nil {
		t.Fatal("expected error for empty key")
	}
}
