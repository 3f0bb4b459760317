package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIdempotency_CreateGetDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "c1", "key-1", "m1", 200, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || rec.ExpiresAt.Before(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "c1", "key-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageID != "m1" || got.Status != 200 {
		t.Fatalf("record mismatch: %+v", got)
	}

	// Same tuple again violates the unique index.
	if _, err := CreateIdempotency(ctx, db, "u1", "c1", "key-1", "m2", 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A different key or user is fine.
	if _, err := CreateIdempotency(ctx, db, "u1", "c1", "key-2", "m2", 200, time.Hour); err != nil {
		t.Fatalf("different key: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u2", "c1", "key-1", "m3", 200, time.Hour); err != nil {
		t.Fatalf("different user: %v", err)
	}
}

func TestIdempotency_ExpiryAndEmptyConversation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "c1", "key-1", "m1", 200, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Expired records are invisible.
	future := time.Now().UTC().Add(2 * time.Minute)
	if _, err := GetIdempotency(ctx, db, "u1", "c1", "key-1", future); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}

	// Lookups without a conversation id never match.
	if _, err := GetIdempotency(ctx, db, "u1", "", "key-1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty conversation, got %v", err)
	}
}
