// Package jobs hosts background work that runs alongside the HTTP server.
//
// The expiry worker enumerates existing users from the document tree at
// startup, learns new ones from live write events, then periodically scans
// each user's pantry and raises an inventory notification for items that
// expire within the configured window. The notification id is derived from
// the item and the calendar day, so a user is nudged at most once a day
// about the same item even across process restarts.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
	"github.com/nourishd/go-nourish-backend/internal/store"
)

// ExpiryWorker produces expiry notifications from inventory state.
type ExpiryWorker struct {
	Store         store.Store
	Inventory     *repo.InventoryRepo
	Notifications *repo.NotificationRepo

	// Window is how far ahead of expiry a notification fires.
	Window time.Duration
	// Interval is the scan cadence.
	Interval time.Duration

	mu    sync.Mutex
	users map[string]struct{}

	sub  store.Subscription
	stop chan struct{}
	done chan struct{}
}

// NewExpiryWorker constructs a worker with the given scan window and cadence.
func NewExpiryWorker(st store.Store, inv *repo.InventoryRepo, notif *repo.NotificationRepo, window, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{
		Store:         st,
		Inventory:     inv,
		Notifications: notif,
		Window:        window,
		Interval:      interval,
		users:         make(map[string]struct{}),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start seeds the user roster from the tree, subscribes to tree activity
// for users created after startup, and begins the scan loop.
func (w *ExpiryWorker) Start() {
	if ids, err := w.Store.Segments(context.Background(), "users"); err != nil {
		log.Warn().Err(err).Msg("expiry worker could not seed users")
	} else {
		w.mu.Lock()
		for _, uid := range ids {
			w.users[uid] = struct{}{}
		}
		w.mu.Unlock()
	}
	w.sub = w.Store.Subscribe("users", func(ev store.Event) {
		if uid := userOf(ev.Path); uid != "" {
			w.mu.Lock()
			w.users[uid] = struct{}{}
			w.mu.Unlock()
		}
	})
	go w.run()
	log.Info().Dur("interval", w.Interval).Dur("window", w.Window).Msg("expiry worker started")
}

// Stop cancels the subscription and waits for the loop to exit.
func (w *ExpiryWorker) Stop() {
	close(w.stop)
	<-w.done
	if w.sub != nil {
		w.sub.Cancel()
	}
}

func (w *ExpiryWorker) run() {
	defer close(w.done)
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.ScanAll(context.Background())
		}
	}
}

// ScanAll scans every known user once. Exposed so tests and an admin
// endpoint can trigger a scan without waiting for the ticker.
func (w *ExpiryWorker) ScanAll(ctx context.Context) {
	w.mu.Lock()
	users := make([]string, 0, len(w.users))
	for u := range w.users {
		users = append(users, u)
	}
	w.mu.Unlock()

	for _, uid := range users {
		if err := w.scanUser(ctx, uid); err != nil {
			log.Warn().Err(err).Str("user_id", uid).Msg("expiry scan failed")
		}
	}
}

func (w *ExpiryWorker) scanUser(ctx context.Context, userID string) error {
	items, err := w.Inventory.List(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	for _, it := range items {
		if it.ExpiryDate == nil {
			continue
		}
		until := it.ExpiryDate.Sub(now)
		if until > w.Window {
			continue
		}
		// The id keys dedup state in the store itself, so a restarted
		// process neither re-notifies nor resets read state.
		id := expiryNotificationID(it.ID, today)
		if _, _, err := w.Notifications.AddOnce(ctx, userID, id, "Expiring soon", expiryMessage(it, until), domain.NotificationInventory); err != nil {
			return err
		}
	}
	return nil
}

// expiryNotificationID keys one item's expiry nudge for one calendar day.
func expiryNotificationID(itemID, day string) string {
	return "expiry-" + itemID + "-" + day
}

func expiryMessage(it domain.InventoryItem, until time.Duration) string {
	days := int(until.Hours() / 24)
	switch {
	case until <= 0:
		return it.Name + " has expired."
	case days == 0:
		return it.Name + " expires today."
	case days == 1:
		return it.Name + " expires tomorrow."
	default:
		return fmt.Sprintf("%s expires in %d days.", it.Name, days)
	}
}

// userOf extracts the user id from a tree path like "users/<uid>/...".
func userOf(path string) string {
	rest, ok := strings.CutPrefix(path, "users/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}
