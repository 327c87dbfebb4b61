package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("returns empty string on miss", func(t *testing.T) {
		m := NewMemory()
		got, err := m.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("expires entries after ttl", func(t *testing.T) {
		m := NewMemory()
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return now }

		if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, _ := m.Get(ctx, "k"); got != "v" {
			t.Errorf("expected v, got %q", got)
		}

		now = now.Add(2 * time.Minute)
		if got, _ := m.Get(ctx, "k"); got != "" {
			t.Errorf("expected expired entry, got %q", got)
		}
	})

	t.Run("deletes keys", func(t *testing.T) {
		m := NewMemory()
		_ = m.Set(ctx, "a", "1", 0)
		_ = m.Set(ctx, "b", "2", 0)
		if err := m.Delete(ctx, "a", "b"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, _ := m.Get(ctx, "a"); got != "" {
			t.Errorf("expected a deleted, got %q", got)
		}
	})
}
