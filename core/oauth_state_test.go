package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryOAuthStateStore_ConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryOAuthStateStore(time.Minute)
	if err := store.Save(context.Background(), OAuthStateRecord{State: "state_a", SessionID: "sess_1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	record, err := store.Consume(context.Background(), "state_a")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.SessionID != "sess_1" || record.ExpiresAt.IsZero() {
		t.Fatalf("unexpected record %+v", record)
	}
	if _, err := store.Consume(context.Background(), "state_a"); err == nil {
		t.Fatalf("expected second consume to fail")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no pending states, got %d", store.Len())
	}
}

func TestMemoryOAuthStateStore_ExpiredStateIsRemoved(t *testing.T) {
	store := NewMemoryOAuthStateStore(time.Minute)
	now := time.Now().UTC()
	if err := store.Save(context.Background(), OAuthStateRecord{
		State:     "stale_state",
		CreatedAt: now.Add(-2 * time.Minute),
		ExpiresAt: now.Add(-1 * time.Minute),
	}); err != nil {
		t.Fatalf("save stale state: %v", err)
	}
	if _, err := store.Consume(context.Background(), "stale_state"); err == nil {
		t.Fatalf("expected expired state to be rejected")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired state to be removed")
	}
}

func TestMemoryOAuthStateStore_RequiresState(t *testing.T) {
	store := NewMemoryOAuthStateStore(0)
	if err := store.Save(context.Background(), OAuthStateRecord{}); err == nil {
		t.Fatalf("expected empty state to be rejected")
	}
	if _, err := store.Consume(context.Background(), "  "); err == nil {
		t.Fatalf("expected empty state to be rejected")
	}
}

func TestGenerateOAuthState_IsRandomAndURLSafe(t *testing.T) {
	first, err := generateOAuthState()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := generateOAuthState()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct states")
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 character state, got %d", len(first))
	}
}
