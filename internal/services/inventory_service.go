// Package services – InventoryService
//
// Thin business layer over the inventory repository: translates repository
// errors into service-level values and keeps the HTTP layer decoupled from
// repo internals.
package services

import (
	"context"
	"errors"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
)

// InventoryService exposes pantry item operations.
type InventoryService struct {
	Repo *repo.InventoryRepo
}

// NewInventoryService constructs an InventoryService.
func NewInventoryService(r *repo.InventoryRepo) *InventoryService {
	return &InventoryService{Repo: r}
}

// List returns the user's non-deleted items in insertion order.
func (s *InventoryService) List(ctx context.Context, userID string) ([]domain.InventoryItem, error) {
	return s.Repo.List(ctx, userID)
}

// Add validates and persists a new item.
func (s *InventoryService) Add(ctx context.Context, userID string, draft repo.ItemDraft) (*domain.InventoryItem, error) {
	item, err := s.Repo.Add(ctx, userID, draft)
	if errors.Is(err, repo.ErrInvalidItem) {
		return nil, errors.Join(ErrInvalidItem, err)
	}
	return item, err
}

// Update merge-patches an existing item.
func (s *InventoryService) Update(ctx context.Context, userID, id string, patch domain.InventoryPatch) (*domain.InventoryItem, error) {
	item, err := s.Repo.Update(ctx, userID, id, patch)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrItemNotFound
	case errors.Is(err, repo.ErrInvalidItem):
		return nil, errors.Join(ErrInvalidItem, err)
	}
	return item, err
}

// Remove soft-deletes an item; removing an already-deleted item succeeds.
func (s *InventoryService) Remove(ctx context.Context, userID, id string) error {
	err := s.Repo.Remove(ctx, userID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrItemNotFound
	}
	return err
}
