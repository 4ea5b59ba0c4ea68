package editor

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestMemoryStoreExpiresEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Put(ctx, "structure:s1", []byte(`{"id":"s1"}`), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := store.Get(ctx, "structure:s1")
	if err != nil || string(data) != `{"id":"s1"}` {
		t.Fatalf("Get: %q %v", data, err)
	}

	now = now.Add(time.Minute)
	if _, err := store.Get(ctx, "structure:s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryStoreSwapComparesCurrentValue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Swap(ctx, "article:a1", nil, []byte("v1"), time.Minute); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := store.Put(ctx, "article:a1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Swap(ctx, "article:a1", []byte("v1"), []byte("v2"), time.Minute); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if err := store.Swap(ctx, "article:a1", []byte("v1"), []byte("v3"), time.Minute); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("expected ErrSessionConflict, got %v", err)
	}
	data, err := store.Get(ctx, "article:a1")
	if err != nil || string(data) != "v2" {
		t.Fatalf("Get: %q %v", data, err)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, url, "writer:test:")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	key := "article:" + time.Now().Format("150405.000000")
	if err := store.Put(ctx, key, []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := store.Get(ctx, key)
	if err != nil || string(data) != "payload" {
		t.Fatalf("Get: %q %v", data, err)
	}
	if err := store.Swap(ctx, key, []byte("stale"), []byte("other"), time.Minute); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("expected ErrSessionConflict, got %v", err)
	}
	if err := store.Swap(ctx, key, []byte("payload"), []byte("next"), time.Minute); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
