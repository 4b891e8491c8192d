package memory

import (
	"context"
	"testing"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, ok, _ := store.Get(ctx, "token"); ok {
		t.Fatalf("expected empty store")
	}
	if err := store.Set(ctx, "token", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "token", "def"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, ok, err := store.Get(ctx, "token")
	if err != nil || !ok || value != "def" {
		t.Fatalf("expected last write to win, got %q %v %v", value, ok, err)
	}

	if err := store.Remove(ctx, "token"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "token"); ok {
		t.Fatalf("expected key removed")
	}
	if err := store.Remove(ctx, "missing"); err != nil {
		t.Fatalf("removing a missing key should be a no-op: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no entries, got %d", store.Len())
	}
}
