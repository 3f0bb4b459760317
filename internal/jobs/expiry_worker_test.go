package jobs

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
	"github.com/nourishd/go-nourish-backend/internal/store"
)

func newWorker(t *testing.T, window time.Duration) (*ExpiryWorker, *repo.InventoryRepo, *repo.NotificationRepo) {
	t.Helper()
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	inv := repo.NewInventoryRepo(st)
	notif := repo.NewNotificationRepo(st)
	w := NewExpiryWorker(st, inv, notif, window, time.Hour)
	return w, inv, notif
}

func TestScan_NotifiesItemsInsideWindow(t *testing.T) {
	w, inv, notif := newWorker(t, 3*24*time.Hour)
	ctx := context.Background()

	w.Start()
	defer w.Stop()

	soon := time.Now().UTC().Add(48 * time.Hour)
	far := time.Now().UTC().Add(30 * 24 * time.Hour)

	// Writes beneath users/ teach the worker which users exist.
	if _, err := inv.Add(ctx, "u1", repo.ItemDraft{Name: "Milk", Amount: "1 l", ExpiryDate: &soon}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := inv.Add(ctx, "u1", repo.ItemDraft{Name: "Rice", Amount: "2 kg", ExpiryDate: &far}); err != nil {
		t.Fatalf("add far: %v", err)
	}

	w.ScanAll(ctx)

	list, err := notif.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d: %+v", len(list), list)
	}
	n := list[0]
	if n.Type != domain.NotificationInventory || n.Title != "Expiring soon" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if !strings.Contains(n.Message, "Milk") {
		t.Fatalf("message should name the item: %q", n.Message)
	}
}

func TestScan_DedupesPerDay(t *testing.T) {
	w, inv, notif := newWorker(t, 3*24*time.Hour)
	ctx := context.Background()

	w.Start()
	defer w.Stop()

	soon := time.Now().UTC().Add(24 * time.Hour)
	if _, err := inv.Add(ctx, "u1", repo.ItemDraft{Name: "Eggs", Amount: "12", ExpiryDate: &soon}); err != nil {
		t.Fatalf("add: %v", err)
	}

	w.ScanAll(ctx)
	w.ScanAll(ctx)
	w.ScanAll(ctx)

	list, err := notif.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected a single deduplicated notification, got %d", len(list))
	}
}

func TestScan_SurvivesRestart(t *testing.T) {
	w, inv, notif := newWorker(t, 3*24*time.Hour)
	ctx := context.Background()

	w.Start()
	soon := time.Now().UTC().Add(24 * time.Hour)
	if _, err := inv.Add(ctx, "u1", repo.ItemDraft{Name: "Eggs", Amount: "12", ExpiryDate: &soon}); err != nil {
		t.Fatalf("add: %v", err)
	}
	w.ScanAll(ctx)

	list, err := notif.List(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 notification before restart, got %d (err %v)", len(list), err)
	}
	if err := notif.MarkRead(ctx, "u1", list[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	w.Stop()

	// A fresh worker over the same store must know existing users without
	// any new write and must not duplicate the same-day notification or
	// reset its read state.
	w2 := NewExpiryWorker(w.Store, w.Inventory, w.Notifications, w.Window, w.Interval)
	w2.Start()
	defer w2.Stop()
	w2.ScanAll(ctx)

	list, err = notif.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list after restart: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification after restart, got %d: %+v", len(list), list)
	}
	if !list[0].IsRead {
		t.Fatalf("restart scan must not reset read state")
	}
}

func TestScan_SkipsDeletedItems(t *testing.T) {
	w, inv, notif := newWorker(t, 3*24*time.Hour)
	ctx := context.Background()

	w.Start()
	defer w.Stop()

	soon := time.Now().UTC().Add(24 * time.Hour)
	item, err := inv.Add(ctx, "u1", repo.ItemDraft{Name: "Yogurt", Amount: "4", ExpiryDate: &soon})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := inv.Remove(ctx, "u1", item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	w.ScanAll(ctx)

	list, err := notif.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted items must not notify: %+v", list)
	}
}

func TestExpiryMessage(t *testing.T) {
	it := domain.InventoryItem{Name: "Milk"}
	cases := []struct {
		until time.Duration
		want  string
	}{
		{-time.Hour, "Milk has expired."},
		{6 * time.Hour, "Milk expires today."},
		{36 * time.Hour, "Milk expires tomorrow."},
		{72 * time.Hour, "Milk expires in 3 days."},
	}
	for _, tc := range cases {
		if got := expiryMessage(it, tc.until); got != tc.want {
			t.Fatalf("expiryMessage(%v) = %q, want %q", tc.until, got, tc.want)
		}
	}
}

func TestUserOf(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"users/u1/inventory/a", "u1"},
		{"users/u1", "u1"},
		{"application-options", ""},
		{"other/u1", ""},
	}
	for _, tc := range cases {
		if got := userOf(tc.path); got != tc.want {
			t.Fatalf("userOf(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
