package store

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryStore_Isolation(t *testing.T) {
	s := NewMemoryStore("l1")
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, "a")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	// Mutating the returned copy must not leak into the store.
	sess.PendingQuizID = "hacked"

	again, err := s.GetOrCreate(ctx, "a")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if again.PendingQuizID != "" {
		t.Error("store state leaked through a returned session copy")
	}
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	s := NewMemoryStore("l1")

	_, err := s.Update(context.Background(), "ghost", Delta{Mode: Ptr(ModeEnglish)})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStore_AllSessionsSorted(t *testing.T) {
	s := NewMemoryStore("l1")
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
	}

	sessions, err := s.AllSessions(ctx)
	if err != nil {
		t.Fatalf("AllSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("len = %d, want 3", len(sessions))
	}
	for i, want := range []string{"a", "b", "c"} {
		if sessions[i].Identity != want {
			t.Errorf("sessions[%d] = %s, want %s", i, sessions[i].Identity, want)
		}
	}
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()

	var mu sync.Mutex
	counters := map[string]int{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				km.Lock(key)
				defer km.Unlock(key)

				mu.Lock()
				counters[key]++
				mu.Unlock()
			}(key)
		}
	}
	wg.Wait()

	if counters["a"] != 50 || counters["b"] != 50 {
		t.Errorf("counters = %v, want 50 each", counters)
	}
}

func TestDelta_IsZero(t *testing.T) {
	var d Delta
	if !d.IsZero() {
		t.Error("empty delta should be zero")
	}
	d.RepliesToday = Ptr(0)
	if d.IsZero() {
		t.Error("delta with a set pointer is not zero, even to a zero value")
	}
	var nilDelta *Delta
	if !nilDelta.IsZero() {
		t.Error("nil delta should be zero")
	}
}
