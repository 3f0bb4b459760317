package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/store"
)

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestInventoryAdd_DefaultsAndTrim(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	ctx := context.Background()

	before := time.Now().UTC()
	item, err := r.Add(ctx, "u1", ItemDraft{Name: "  Rice  ", Amount: " 2 kg "})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.ID == "" {
		t.Fatalf("expected generated id")
	}
	if item.Name != "Rice" || item.Amount != "2 kg" {
		t.Fatalf("expected trimmed fields, got %q / %q", item.Name, item.Amount)
	}
	if item.BoughtDate.Before(before) {
		t.Fatalf("bought date should default to now, got %v", item.BoughtDate)
	}
	if item.ExpiryDate == nil {
		t.Fatalf("expiry date should default")
	}
	if got, want := item.ExpiryDate.Sub(item.BoughtDate), DefaultExpiryWindow; got != want {
		t.Fatalf("default expiry window = %v, want %v", got, want)
	}

	// The item is readable back through Get and List.
	got, err := r.Get(ctx, "u1", item.ID)
	if err != nil || got.Name != "Rice" {
		t.Fatalf("get after add: %+v (%v)", got, err)
	}
}

func TestInventoryAdd_Validation(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	ctx := context.Background()

	cases := []struct {
		name  string
		draft ItemDraft
	}{
		{"empty name", ItemDraft{Name: "   ", Amount: "1"}},
		{"empty amount", ItemDraft{Name: "Milk", Amount: ""}},
		{"bought after expiry", ItemDraft{
			Name:       "Milk",
			Amount:     "1 l",
			BoughtDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
			ExpiryDate: timePtr(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Add(ctx, "u1", tc.draft); !errors.Is(err, ErrInvalidItem) {
				t.Fatalf("expected ErrInvalidItem, got %v", err)
			}
		})
	}
}

func TestInventoryList_ExcludesDeletedKeepsOrder(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	ctx := context.Background()

	a, _ := r.Add(ctx, "u1", ItemDraft{Name: "A", Amount: "1"})
	b, _ := r.Add(ctx, "u1", ItemDraft{Name: "B", Amount: "1"})
	c, _ := r.Add(ctx, "u1", ItemDraft{Name: "C", Amount: "1"})

	if err := r.Remove(ctx, "u1", b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	items, err := r.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != a.ID || items[1].ID != c.ID {
		t.Fatalf("expected [A C] in insertion order, got %+v", items)
	}

	// Another user sees nothing.
	other, err := r.List(ctx, "u2")
	if err != nil || len(other) != 0 {
		t.Fatalf("expected empty list for u2, got %v (%v)", other, err)
	}
}

func TestInventoryUpdate_MergePatch(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	ctx := context.Background()

	item, _ := r.Add(ctx, "u1", ItemDraft{Name: "Yogurt", Amount: "4", Notes: "plain"})

	updated, err := r.Update(ctx, "u1", item.ID, domain.InventoryPatch{Amount: strPtr("6")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount != "6" {
		t.Fatalf("amount not patched: %+v", updated)
	}
	// Untouched fields survive.
	if updated.Name != "Yogurt" || updated.Notes != "plain" {
		t.Fatalf("patch clobbered unrelated fields: %+v", updated)
	}
	if !updated.UpdatedAt.After(item.UpdatedAt) && !updated.UpdatedAt.Equal(item.UpdatedAt) {
		t.Fatalf("updatedAt went backwards: %v -> %v", item.UpdatedAt, updated.UpdatedAt)
	}
}

func TestInventoryUpdate_RejectsInvertedDates(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	ctx := context.Background()

	item, _ := r.Add(ctx, "u1", ItemDraft{Name: "Cheese", Amount: "1"})

	late := item.ExpiryDate.Add(24 * time.Hour)
	_, err := r.Update(ctx, "u1", item.ID, domain.InventoryPatch{BoughtDate: timePtr(late)})
	if !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for bought after expiry, got %v", err)
	}

	// The stored item is unchanged after the rejected patch.
	got, err := r.Get(ctx, "u1", item.ID)
	if err != nil || !got.BoughtDate.Equal(item.BoughtDate) {
		t.Fatalf("rejected patch must not persist: %+v (%v)", got, err)
	}
}

func TestInventoryUpdate_Missing(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	if _, err := r.Update(context.Background(), "u1", "nope", domain.InventoryPatch{Name: strPtr("X")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInventoryRemove_SoftDeleteIdempotent(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	ctx := context.Background()

	item, _ := r.Add(ctx, "u1", ItemDraft{Name: "Eggs", Amount: "12"})

	if err := r.Remove(ctx, "u1", item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Get(ctx, "u1", item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted item must be invisible, got %v", err)
	}
	// Second remove is a no-op success.
	if err := r.Remove(ctx, "u1", item.ID); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	// Unknown id is an error.
	if err := r.Remove(ctx, "u1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInventory_AnonymousScope(t *testing.T) {
	r := NewInventoryRepo(newTestStore(t))
	if _, err := r.List(context.Background(), ""); !errors.Is(err, store.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
