package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestSaveGetDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		CallSID:        "CA100",
		CallID:         uuid.New(),
		CallerNumber:   "+4915112345678",
		Language:       "de",
		State:          StateAwaitConfirmation,
		OrderCandidate: "131629",
		Retries:        1,
	}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "CA100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != StateAwaitConfirmation || got.OrderCandidate != "131629" {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be stamped on save")
	}

	if err := store.Delete(ctx, "CA100"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "CA100"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetUnknownCall(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "CAnope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &Session{CallSID: "CA200", State: StateGreeting}); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, "CA200"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session to expire, got %v", err)
	}
}

func TestEmailAttemptCooldown(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := store.MarkEmailAttempt(ctx, "CA300", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first attempt should pass: ok=%v err=%v", ok, err)
	}
	ok, err = store.MarkEmailAttempt(ctx, "CA300", time.Minute)
	if err != nil || ok {
		t.Fatalf("second attempt inside cooldown should be blocked: ok=%v err=%v", ok, err)
	}

	mr.FastForward(2 * time.Minute)
	ok, err = store.MarkEmailAttempt(ctx, "CA300", time.Minute)
	if err != nil || !ok {
		t.Fatalf("attempt after cooldown should pass: ok=%v err=%v", ok, err)
	}
}

func TestEmailSentExactlyOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sent, err := store.EmailSent(ctx, "CA400")
	if err != nil || sent {
		t.Fatalf("flag should start unset: sent=%v err=%v", sent, err)
	}
	ok, err := store.MarkEmailSent(ctx, "CA400")
	if err != nil || !ok {
		t.Fatalf("first send should win: ok=%v err=%v", ok, err)
	}
	sent, err = store.EmailSent(ctx, "CA400")
	if err != nil || !sent {
		t.Fatalf("flag should be set after marking: sent=%v err=%v", sent, err)
	}
	for i := 0; i < 3; i++ {
		ok, err = store.MarkEmailSent(ctx, "CA400")
		if err != nil || ok {
			t.Fatalf("repeat send %d should be suppressed: ok=%v err=%v", i, ok, err)
		}
	}
}
