// Notification HTTP handlers.
//
//   - GET  /notifications            (newest first)
//   - POST /notifications/{id}/read  (mark as read, idempotent)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/services"
)

// ListNotificationsResponse wraps the notification list.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// ListNotifications returns the user's notifications, newest first.
func (h *Handlers) ListNotifications(c *gin.Context) {
	items, err := h.notifSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list notifications")
		return
	}
	ok(c, http.StatusOK, ListNotificationsResponse{Notifications: items})
}

// MarkNotificationRead flags a notification as read. Marking an
// already-read notification succeeds without effect.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if err := h.notifSvc.MarkRead(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not mark notification read")
		return
	}
	noContent(c)
}
