// This file provides the repository for notifications. Notifications are
// produced by the expiry worker and mutated only via mark-as-read.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/store"
)

// NotificationRepo persists notifications in the user's subtree.
type NotificationRepo struct {
	Store store.Store
}

// NewNotificationRepo constructs a NotificationRepo over the given store.
func NewNotificationRepo(st store.Store) *NotificationRepo {
	return &NotificationRepo{Store: st}
}

// List returns the user's notifications, newest first.
func (r *NotificationRepo) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	sc := store.ScopeTo(r.Store, userID)
	entries, err := sc.Children(ctx, "notifications")
	if err != nil {
		return nil, readErr(err)
	}
	out := make([]domain.Notification, 0, len(entries))
	for _, e := range entries {
		var n domain.Notification
		if err := json.Unmarshal(e.Value, &n); err != nil {
			return nil, fmt.Errorf("%w: decoding notification %s: %v", ErrStoreRead, e.Key, err)
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Add persists a new notification and returns it.
func (r *NotificationRepo) Add(ctx context.Context, userID, title, message, typ string) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
	sc := store.ScopeTo(r.Store, userID)
	if err := sc.Write(ctx, "notifications/"+n.ID, n); err != nil {
		return nil, writeErr(err)
	}
	return n, nil
}

// AddOnce persists a notification under a caller-chosen id, unless one
// already exists at that id. The expiry worker derives the id from the
// item and calendar day, so repeated scans, including scans after a
// process restart, neither duplicate the notification nor reset its read
// state. The second return value reports whether a write happened.
func (r *NotificationRepo) AddOnce(ctx context.Context, userID, id, title, message, typ string) (*domain.Notification, bool, error) {
	sc := store.ScopeTo(r.Store, userID)
	var existing domain.Notification
	err := sc.Read(ctx, "notifications/"+id, &existing)
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, readErr(err)
	}
	n := &domain.Notification{
		ID:        id,
		Title:     title,
		Message:   message,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
	if err := sc.Write(ctx, "notifications/"+n.ID, n); err != nil {
		return nil, false, writeErr(err)
	}
	return n, true, nil
}

// MarkRead flags a notification as read. Marking one that is already read
// is a no-op success; a missing id reports ErrNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id string) error {
	sc := store.ScopeTo(r.Store, userID)
	var n domain.Notification
	if err := sc.Read(ctx, "notifications/"+id, &n); err != nil {
		return readErr(err)
	}
	if n.IsRead {
		return nil
	}
	return writeErr(sc.Update(ctx, "notifications/"+id, map[string]any{"isRead": true}))
}
