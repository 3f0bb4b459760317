// Inventory HTTP handlers.
//
//   - GET    /inventory        (list non-deleted items)
//   - POST   /inventory        (add an item)
//   - PATCH  /inventory/{id}   (merge-patch an item)
//   - DELETE /inventory/{id}   (soft delete)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
	"github.com/nourishd/go-nourish-backend/internal/services"
)

// AddItemRequest is the JSON payload for creating a pantry item.
// BoughtDate defaults to now and ExpiryDate defaults to BoughtDate plus
// the default expiry window when omitted.
type AddItemRequest struct {
	Name       string     `json:"name" binding:"required,min=1"`
	Amount     string     `json:"amount" binding:"required,min=1"`
	BoughtDate *time.Time `json:"boughtDate"`
	ExpiryDate *time.Time `json:"expiryDate"`
	Notes      string     `json:"notes"`
}

// ListInventoryResponse wraps the item list.
type ListInventoryResponse struct {
	Items []domain.InventoryItem `json:"items"`
}

// ListInventory returns the user's non-deleted items in insertion order.
func (h *Handlers) ListInventory(c *gin.Context) {
	items, err := h.invSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list inventory")
		return
	}
	ok(c, http.StatusOK, ListInventoryResponse{Items: items})
}

// AddItem creates a pantry item and returns it with server-assigned
// identity and timestamps.
func (h *Handlers) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and amount are required")
		return
	}
	draft := repo.ItemDraft{
		Name:       req.Name,
		Amount:     req.Amount,
		ExpiryDate: req.ExpiryDate,
		Notes:      req.Notes,
	}
	if req.BoughtDate != nil {
		draft.BoughtDate = *req.BoughtDate
	}

	item, err := h.invSvc.Add(c.Request.Context(), userID(c), draft)
	if err != nil {
		if errors.Is(err, services.ErrInvalidItem) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid item")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not add item")
		return
	}
	ok(c, http.StatusCreated, item)
}

// UpdateItem applies a merge patch to an existing item. Absent fields are
// left untouched.
func (h *Handlers) UpdateItem(c *gin.Context) {
	var patch domain.InventoryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid patch")
		return
	}

	item, err := h.invSvc.Update(c.Request.Context(), userID(c), c.Param("id"), patch)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrItemNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "item not found")
		case errors.Is(err, services.ErrInvalidItem):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid item")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update item")
		}
		return
	}
	ok(c, http.StatusOK, item)
}

// RemoveItem soft-deletes an item. Removing an already-deleted item
// succeeds without effect.
func (h *Handlers) RemoveItem(c *gin.Context) {
	if err := h.invSvc.Remove(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrItemNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "item not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not remove item")
		return
	}
	noContent(c)
}
