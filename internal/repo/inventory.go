// This file provides the repository for pantry inventory items.
//
// Items live under users/<uid>/inventory/<itemID> and are soft-deleted:
// Remove flips isDeleted instead of dropping the document so that expiry
// notification history stays resolvable. Listings exclude soft-deleted
// items and preserve store insertion order.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/store"
)

// DefaultExpiryWindow is the expiry assigned to items added without one.
const DefaultExpiryWindow = 30 * 24 * time.Hour

// InventoryRepo persists perishable items in the user's subtree.
type InventoryRepo struct {
	Store store.Store
}

// NewInventoryRepo constructs an InventoryRepo over the given store.
func NewInventoryRepo(st store.Store) *InventoryRepo {
	return &InventoryRepo{Store: st}
}

// ItemDraft carries caller input for a new item. Zero-valued dates get
// defaults: BoughtDate = now, ExpiryDate = BoughtDate + 30 days.
type ItemDraft struct {
	Name       string
	Amount     string
	BoughtDate time.Time
	ExpiryDate *time.Time
	Notes      string
}

// List returns the user's non-deleted items in insertion order.
func (r *InventoryRepo) List(ctx context.Context, userID string) ([]domain.InventoryItem, error) {
	sc := store.ScopeTo(r.Store, userID)
	entries, err := sc.Children(ctx, "inventory")
	if err != nil {
		return nil, readErr(err)
	}
	out := make([]domain.InventoryItem, 0, len(entries))
	for _, e := range entries {
		var item domain.InventoryItem
		if err := json.Unmarshal(e.Value, &item); err != nil {
			return nil, fmt.Errorf("%w: decoding item %s: %v", ErrStoreRead, e.Key, err)
		}
		if item.IsDeleted {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// Get returns a single non-deleted item by id.
func (r *InventoryRepo) Get(ctx context.Context, userID, id string) (*domain.InventoryItem, error) {
	sc := store.ScopeTo(r.Store, userID)
	var item domain.InventoryItem
	if err := sc.Read(ctx, "inventory/"+id, &item); err != nil {
		return nil, readErr(err)
	}
	if item.IsDeleted {
		return nil, ErrNotFound
	}
	return &item, nil
}

// Add validates the draft, applies date defaults, and persists a new item.
// A draft whose bought date falls after its expiry date is rejected; the
// store would accept it silently, so the invariant is enforced here.
func (r *InventoryRepo) Add(ctx context.Context, userID string, draft ItemDraft) (*domain.InventoryItem, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if strings.TrimSpace(draft.Amount) == "" {
		return nil, fmt.Errorf("%w: amount is required", ErrInvalidItem)
	}

	now := time.Now().UTC()
	bought := draft.BoughtDate
	if bought.IsZero() {
		bought = now
	}
	expiry := draft.ExpiryDate
	if expiry == nil {
		e := bought.Add(DefaultExpiryWindow)
		expiry = &e
	}
	if bought.After(*expiry) {
		return nil, fmt.Errorf("%w: bought date is after expiry date", ErrInvalidItem)
	}

	item := domain.InventoryItem{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(draft.Name),
		Amount:     strings.TrimSpace(draft.Amount),
		BoughtDate: bought,
		ExpiryDate: expiry,
		Notes:      draft.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	sc := store.ScopeTo(r.Store, userID)
	if err := sc.Write(ctx, "inventory/"+item.ID, item); err != nil {
		return nil, writeErr(err)
	}
	return &item, nil
}

// Update applies a merge patch to an existing item and bumps updatedAt.
// Missing and soft-deleted items both report ErrNotFound.
func (r *InventoryRepo) Update(ctx context.Context, userID, id string, patch domain.InventoryPatch) (*domain.InventoryItem, error) {
	item, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidItem)
		}
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Amount != nil {
		if strings.TrimSpace(*patch.Amount) == "" {
			return nil, fmt.Errorf("%w: amount is required", ErrInvalidItem)
		}
		item.Amount = strings.TrimSpace(*patch.Amount)
	}
	if patch.BoughtDate != nil {
		item.BoughtDate = *patch.BoughtDate
	}
	if patch.ExpiryDate != nil {
		item.ExpiryDate = patch.ExpiryDate
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	if item.ExpiryDate != nil && item.BoughtDate.After(*item.ExpiryDate) {
		return nil, fmt.Errorf("%w: bought date is after expiry date", ErrInvalidItem)
	}

	item.UpdatedAt = time.Now().UTC()
	sc := store.ScopeTo(r.Store, userID)
	if err := sc.Write(ctx, "inventory/"+id, item); err != nil {
		return nil, writeErr(err)
	}
	return item, nil
}

// Remove soft-deletes an item. Removing an already-deleted item succeeds
// without a second write; a missing id reports ErrNotFound.
func (r *InventoryRepo) Remove(ctx context.Context, userID, id string) error {
	sc := store.ScopeTo(r.Store, userID)
	var item domain.InventoryItem
	if err := sc.Read(ctx, "inventory/"+id, &item); err != nil {
		return readErr(err)
	}
	if item.IsDeleted {
		return nil
	}
	err := sc.Update(ctx, "inventory/"+id, map[string]any{
		"isDeleted": true,
		"updatedAt": time.Now().UTC(),
	})
	return writeErr(err)
}
