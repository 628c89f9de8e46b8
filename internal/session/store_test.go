package session

import (
	"context"
	"fmt"
	"testing"

	"scholarbot/internal/models"
)

func TestMemoryStoreGeneratesSessionID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, transcript, err := store.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated session id")
	}
	if len(transcript) != 0 {
		t.Fatalf("fresh session should have empty transcript, got %d turns", len(transcript))
	}

	again, _, err := store.GetOrCreate(ctx, "")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if again == id {
		t.Fatalf("expected distinct ids for distinct sessions")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", store.Len())
	}
}

func TestMemoryStoreAccumulatesTurns(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	for i := 0; i < 3; i++ {
		turn := models.Turn{
			UserText:   fmt.Sprintf("question %d", i),
			AnswerText: fmt.Sprintf("answer %d", i),
		}
		if err := store.Append(ctx, id, turn); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}

	_, transcript, err := store.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(transcript))
	}
	if transcript[2].UserText != "question 2" {
		t.Fatalf("turns out of order: %q", transcript[2].UserText)
	}

	// Returned transcripts are snapshots; mutating one must not leak
	// back into the store.
	transcript[0].UserText = "mutated"
	_, fresh, _ := store.GetOrCreate(ctx, id)
	if fresh[0].UserText != "question 0" {
		t.Fatalf("store transcript was mutated through a snapshot")
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _, _ := store.GetOrCreate(ctx, "sess-del")
	if err := store.Append(ctx, id, models.Turn{UserText: "q", AnswerText: "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	existed, err := store.Delete(ctx, id)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Fatalf("expected delete to report an existing session")
	}

	existed, err = store.Delete(ctx, id)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Fatalf("second delete should report no session")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no live sessions after delete, got %d", store.Len())
	}

	_, transcript, _ := store.GetOrCreate(ctx, id)
	if len(transcript) != 0 {
		t.Fatalf("deleted session should restart empty, got %d turns", len(transcript))
	}
}
