package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *red.Client {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client
}

func TestRateLimitStore_RecordAndCount(t *testing.T) {
	client := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rl", TTL: time.Minute})

	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := store.RecordAttempt(ctx, "192.0.2.1", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "192.0.2.1", time.Minute, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts, got %d", count)
	}

	// Attempts outside the window are not counted.
	count, err = store.CountAttempts(ctx, "192.0.2.1", time.Second, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 attempts outside the window, got %d", count)
	}
}

func TestRateLimitStore_TrimWindow(t *testing.T) {
	client := newTestRedis(t)
	store := NewRateLimitStore(client, SlidingWindowConfig{KeyPrefix: "test:rl", TTL: time.Minute})

	ctx := context.Background()
	now := time.Now()

	if err := store.RecordAttempt(ctx, "client-a", now.Add(-2*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := store.RecordAttempt(ctx, "client-a", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if err := store.TrimWindow(ctx, "client-a", time.Minute, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err := store.CountAttempts(ctx, "client-a", time.Hour, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected old attempt trimmed, got %d remaining", count)
	}
}
