package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreFromClient(client, "tutor:", "l1")
}

func TestRedisStore_GetOrCreate(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, "whatsapp:+1555")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if sess.Mode != ModeBilingual {
		t.Errorf("fresh session mode = %q, want %q", sess.Mode, ModeBilingual)
	}
	if sess.LessonID != "l1" {
		t.Errorf("fresh session lesson = %q, want l1", sess.LessonID)
	}
	if sess.ConversationMode {
		t.Error("fresh session should not be in conversation mode")
	}

	// Second call returns the stored session, not a new one.
	again, err := s.GetOrCreate(ctx, "whatsapp:+1555")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if !again.CreatedAt.Equal(sess.CreatedAt) {
		t.Error("second GetOrCreate created a new session")
	}
}

func TestRedisStore_Update(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "whatsapp:+1555"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	sess, err := s.Update(ctx, "whatsapp:+1555", Delta{
		Mode:          Ptr(ModeSpanish),
		PendingQuizID: Ptr("q7"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sess.Mode != ModeSpanish || sess.PendingQuizID != "q7" {
		t.Errorf("updated session = %+v", sess)
	}

	// Pointer to zero clears the field.
	sess, err = s.Update(ctx, "whatsapp:+1555", Delta{PendingQuizID: Ptr("")})
	if err != nil {
		t.Fatalf("Update clear: %v", err)
	}
	if sess.PendingQuizID != "" {
		t.Errorf("PendingQuizID = %q, want cleared", sess.PendingQuizID)
	}
	if sess.Mode != ModeSpanish {
		t.Errorf("Mode = %q, untouched fields must survive", sess.Mode)
	}
}

func TestRedisStore_UpdateMissing(t *testing.T) {
	s := newTestRedisStore(t)

	_, err := s.Update(context.Background(), "ghost", Delta{Mode: Ptr(ModeEnglish)})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStore_AverageScore(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	avg, count, err := s.AverageScore(ctx, "whatsapp:+1555")
	if err != nil {
		t.Fatalf("AverageScore: %v", err)
	}
	if count != 0 || avg != 0 {
		t.Errorf("empty log: avg=%v count=%d", avg, count)
	}

	for _, score := range []float64{1, 0.5, 0} {
		if err := s.AppendInteraction(ctx, &Interaction{
			ID:        "i",
			SessionID: "whatsapp:+1555",
			Score:     score,
		}); err != nil {
			t.Fatalf("AppendInteraction: %v", err)
		}
	}

	avg, count, err = s.AverageScore(ctx, "whatsapp:+1555")
	if err != nil {
		t.Fatalf("AverageScore: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if avg != 0.5 {
		t.Errorf("avg = %v, want 0.5", avg)
	}
}

func TestRedisStore_AllSessions(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	for _, id := range []string{"whatsapp:+1111", "whatsapp:+2222", "whatsapp:+3333"} {
		if _, err := s.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate(%s): %v", id, err)
		}
	}

	sessions, err := s.AllSessions(ctx)
	if err != nil {
		t.Fatalf("AllSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("len(sessions) = %d, want 3", len(sessions))
	}
}

func TestRedisStore_AllSessionsCleansStaleIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStoreFromClient(client, "tutor:", "l1")
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "whatsapp:+1111"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	// Simulate a session value evicted out from under the index.
	if err := client.Del(ctx, "tutor:session:whatsapp:+1111").Err(); err != nil {
		t.Fatalf("Del: %v", err)
	}

	sessions, err := s.AllSessions(ctx)
	if err != nil {
		t.Fatalf("AllSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("len(sessions) = %d, want 0", len(sessions))
	}
}

func TestRedisStore_Closed(t *testing.T) {
	s := newTestRedisStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := s.GetOrCreate(context.Background(), "x"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	// Double close is a no-op.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
