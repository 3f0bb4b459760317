// Package services – NotificationService
package services

import (
	"context"
	"errors"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
)

// NotificationService exposes notification listing and mark-as-read.
type NotificationService struct {
	Repo *repo.NotificationRepo
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(r *repo.NotificationRepo) *NotificationService {
	return &NotificationService{Repo: r}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.Repo.List(ctx, userID)
}

// MarkRead flags a notification as read; already-read is a no-op success.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := s.Repo.MarkRead(ctx, userID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
