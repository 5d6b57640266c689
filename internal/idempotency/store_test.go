package idempotency

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupIdempotencyTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			response_json TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create idempotency_keys: %v", err)
	}
	return db
}

func TestReserveThenReplay(t *testing.T) {
	db := setupIdempotencyTestDB(t, "idem_replay")
	store := NewStore(db)
	ctx := context.Background()

	first, err := store.Reserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if first.State != StateReserved {
		t.Fatalf("expected reserved, got %v", first.State)
	}

	// Duplicate arriving before the response is stored waits.
	dup, err := store.Reserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("reserve duplicate: %v", err)
	}
	if dup.State != StateInFlight {
		t.Fatalf("expected in-flight, got %v", dup.State)
	}

	canonical := []byte(`{"payment_id":"1","status":"captured"}`)
	if err := store.StoreResponse(ctx, "key-1", canonical); err != nil {
		t.Fatalf("store response: %v", err)
	}

	replay, err := store.Reserve(ctx, "key-1")
	if err != nil {
		t.Fatalf("reserve after response: %v", err)
	}
	if replay.State != StateReplay {
		t.Fatalf("expected replay, got %v", replay.State)
	}
	if string(replay.Response) != string(canonical) {
		t.Fatalf("expected canonical response, got %s", replay.Response)
	}
}

func TestReserveMissingKey(t *testing.T) {
	db := setupIdempotencyTestDB(t, "idem_missing")
	store := NewStore(db)

	if _, err := store.Reserve(context.Background(), "  "); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestReleaseFreesReservation(t *testing.T) {
	db := setupIdempotencyTestDB(t, "idem_release")
	store := NewStore(db)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "key-2"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Release(ctx, "key-2"); err != nil {
		t.Fatalf("release: %v", err)
	}

	again, err := store.Reserve(ctx, "key-2")
	if err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	if again.State != StateReserved {
		t.Fatalf("expected reservation after release, got %v", again.State)
	}
}

func TestReleaseKeepsCanonicalResponse(t *testing.T) {
	db := setupIdempotencyTestDB(t, "idem_keep")
	store := NewStore(db)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "key-3"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.StoreResponse(ctx, "key-3", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("store response: %v", err)
	}
	if err := store.Release(ctx, "key-3"); err != nil {
		t.Fatalf("release: %v", err)
	}

	result, err := store.Reserve(ctx, "key-3")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if result.State != StateReplay {
		t.Fatalf("expected stored response to survive release, got %v", result.State)
	}
}
