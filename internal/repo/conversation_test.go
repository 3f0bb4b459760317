package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nourishd/go-nourish-backend/internal/domain"
)

func TestConversationCreate_WritesThreadAndFirstMessage(t *testing.T) {
	r := NewConversationRepo(newTestStore(t))
	ctx := context.Background()

	conv, err := r.Create(ctx, "u1", "Dinner Ideas", "what can I cook tonight?")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ID == "" || conv.Title != "Dinner Ideas" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	got, err := r.Get(ctx, "u1", conv.ID)
	if err != nil || got.Title != "Dinner Ideas" {
		t.Fatalf("get: %+v (%v)", got, err)
	}

	msgs, err := r.Messages(ctx, "u1", conv.ID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != domain.RoleUser || msgs[0].Content != "what can I cook tonight?" {
		t.Fatalf("expected the first user message, got %+v", msgs)
	}
}

func TestConversationAppend_OrderingAndWindow(t *testing.T) {
	r := NewConversationRepo(newTestStore(t))
	ctx := context.Background()

	conv, err := r.Create(ctx, "u1", "t", "one")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, c := range []string{"two", "three", "four"} {
		role := domain.RoleAssistant
		if c == "three" {
			role = domain.RoleUser
		}
		if _, err := r.Append(ctx, "u1", conv.ID, c, role); err != nil {
			t.Fatalf("append %s: %v", c, err)
		}
	}

	// Full history in append order, even when timestamps collide within
	// clock resolution.
	msgs, err := r.Messages(ctx, "u1", conv.ID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	want := []string{"one", "two", "three", "four"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i := range want {
		if msgs[i].Content != want[i] {
			t.Fatalf("order mismatch at %d: got %q, want %q", i, msgs[i].Content, want[i])
		}
	}

	// Window keeps the most recent messages and drops the oldest.
	last2, err := r.Messages(ctx, "u1", conv.ID, 2)
	if err != nil {
		t.Fatalf("windowed messages: %v", err)
	}
	if len(last2) != 2 || last2[0].Content != "three" || last2[1].Content != "four" {
		t.Fatalf("window mismatch: %+v", last2)
	}

	turns, err := r.History(ctx, "u1", conv.ID, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != domain.RoleUser || turns[1].Role != domain.RoleAssistant {
		t.Fatalf("history roles mismatch: %+v", turns)
	}
}

func TestConversationAppend_MissingThread(t *testing.T) {
	r := NewConversationRepo(newTestStore(t))
	if _, err := r.Append(context.Background(), "u1", "nope", "hi", domain.RoleUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConversationAppend_LastUpdatedNeverMovesBack(t *testing.T) {
	st := newTestStore(t)
	r := NewConversationRepo(st)
	ctx := context.Background()

	conv, err := r.Create(ctx, "u1", "t", "hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Simulate another device having written a future lastUpdated.
	future := time.Now().UTC().Add(time.Hour)
	if err := st.Update(ctx, "users/u1/conversations/"+conv.ID, map[string]any{"lastUpdated": future}); err != nil {
		t.Fatalf("seed future timestamp: %v", err)
	}

	if _, err := r.Append(ctx, "u1", conv.ID, "again", domain.RoleUser); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := r.Get(ctx, "u1", conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastUpdated.Before(future) {
		t.Fatalf("lastUpdated moved backwards: %v < %v", got.LastUpdated, future)
	}
}

func TestConversationList_RecencyOrderAndPreview(t *testing.T) {
	r := NewConversationRepo(newTestStore(t))
	ctx := context.Background()

	first, err := r.Create(ctx, "u1", "first", "hello from first")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := r.Create(ctx, "u1", "second", "hello from second")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Touch the first thread so it becomes the most recent.
	time.Sleep(5 * time.Millisecond)
	if _, err := r.Append(ctx, "u1", first.ID, "newest message", domain.RoleAssistant); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, err := r.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("expected recency order [first second], got %+v", list)
	}
	if list[0].Preview != "newest message" {
		t.Fatalf("preview should be the latest message, got %q", list[0].Preview)
	}
}

func TestConversationDelete_Cascades(t *testing.T) {
	r := NewConversationRepo(newTestStore(t))
	ctx := context.Background()

	conv, err := r.Create(ctx, "u1", "t", "hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Append(ctx, "u1", conv.ID, "more", domain.RoleAssistant); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := r.Delete(ctx, "u1", conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, "u1", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := r.Messages(ctx, "u1", conv.ID, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("messages must be gone with the thread, got %v", err)
	}
	if err := r.Delete(ctx, "u1", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete reports ErrNotFound, got %v", err)
	}
}
