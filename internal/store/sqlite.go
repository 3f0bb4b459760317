// SQLite-backed document tree. Each tree node is one row keyed by its full
// path; the autoincrement sequence preserves insertion order for child
// listings. Writes are last-writer-wins per path, matching the remote
// store this adapter fronts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"
)

// node is the GORM row backing one tree path. Seq is never updated after
// insert, so children keep their insertion order across overwrites.
type node struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement"`
	Path      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_node_path"`
	Value     string    `gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName returns the database table name for node.
func (node) TableName() string { return "nodes" }

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early with a clear error when the parent directory is missing,
	// instead of whatever the sqlite driver reports at first write.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// SQLiteStore implements Store over a GORM SQLite handle. It is safe for
// concurrent use; subscriber callbacks run synchronously on the mutating
// goroutine after the row change has committed.
type SQLiteStore struct {
	db  *gorm.DB
	hub *hub
}

// New migrates the node table and returns a ready store.
func New(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&node{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, hub: newHub()}, nil
}

// DB exposes the underlying GORM handle for relational side tables that
// live next to the document tree (idempotency records).
func (s *SQLiteStore) DB() *gorm.DB { return s.db }

// Read unmarshals the document at path into dst.
func (s *SQLiteStore) Read(ctx context.Context, path string, dst any) error {
	var n node
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if raw, ok := dst.(*json.RawMessage); ok {
		*raw = json.RawMessage(n.Value)
		return nil
	}
	return json.Unmarshal([]byte(n.Value), dst)
}

// Write replaces the document at path, creating it when absent.
func (s *SQLiteStore) Write(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.Assignments(map[string]any{"value": string(raw), "updated_at": time.Now().UTC()}),
	}).Create(&node{Path: path, Value: string(raw), UpdatedAt: time.Now().UTC()}).Error
	if err != nil {
		return err
	}
	s.hub.notify(Event{Path: path, Value: raw})
	return nil
}

// Update shallow-merges fields into the document at path. Sibling keys are
// preserved; a missing document is created from the given fields alone.
func (s *SQLiteStore) Update(ctx context.Context, path string, fields map[string]any) error {
	var merged []byte
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc := map[string]any{}
		var n node
		err := tx.Where("path = ?", path).First(&n).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// merge into an empty document
		case err != nil:
			return err
		default:
			if uerr := json.Unmarshal([]byte(n.Value), &doc); uerr != nil {
				return uerr
			}
		}
		for k, v := range fields {
			doc[k] = v
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		merged = raw
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.Assignments(map[string]any{"value": string(raw), "updated_at": time.Now().UTC()}),
		}).Create(&node{Path: path, Value: string(raw), UpdatedAt: time.Now().UTC()}).Error
	})
	if err != nil {
		return err
	}
	s.hub.notify(Event{Path: path, Value: merged})
	return nil
}

// Delete removes the node at path together with its entire subtree. The
// parent-owns-children composition (conversation -> messages) relies on
// this cascade.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	err := s.db.WithContext(ctx).
		Where("path = ? OR path LIKE ?", path, path+"/%").
		Delete(&node{}).Error
	if err != nil {
		return err
	}
	s.hub.notify(Event{Path: path, Value: nil})
	return nil
}

// Children returns the direct children of path in insertion order.
func (s *SQLiteStore) Children(ctx context.Context, path string) ([]Entry, error) {
	var rows []node
	err := s.db.WithContext(ctx).
		Where("path LIKE ? AND path NOT LIKE ?", path+"/%", path+"/%/%").
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			Key:   r.Path[len(path)+1:],
			Value: json.RawMessage(r.Value),
		})
	}
	return out, nil
}

// Segments lists the distinct immediate child segments beneath path in
// first-write order. Unlike Children it also surfaces implicit
// intermediate levels, so Segments(ctx, "users") enumerates user ids even
// though "users/<uid>" itself holds no document.
func (s *SQLiteStore) Segments(ctx context.Context, path string) ([]string, error) {
	var rows []node
	err := s.db.WithContext(ctx).
		Where("path LIKE ?", path+"/%").
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		seg := r.Path[len(path)+1:]
		if i := strings.IndexByte(seg, '/'); i >= 0 {
			seg = seg[:i]
		}
		if _, ok := seen[seg]; ok {
			continue
		}
		seen[seg] = struct{}{}
		out = append(out, seg)
	}
	return out, nil
}

// Subscribe registers fn for mutations at or beneath path.
func (s *SQLiteStore) Subscribe(path string, fn func(Event)) Subscription {
	return s.hub.subscribe(path, fn)
}

// hub is the in-process listener registry. The remote store this adapter
// models pushes changes to registered callbacks; locally we invoke them
// right after a successful row mutation.
type hub struct {
	mu   sync.Mutex
	next int64
	subs map[int64]*hubSub
}

type hubSub struct {
	id     int64
	prefix string
	fn     func(Event)
	hub    *hub
}

func newHub() *hub {
	return &hub{subs: make(map[int64]*hubSub)}
}

func (h *hub) subscribe(prefix string, fn func(Event)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	s := &hubSub{id: h.next, prefix: prefix, fn: fn, hub: h}
	h.subs[s.id] = s
	return s
}

func (h *hub) notify(ev Event) {
	h.mu.Lock()
	matched := make([]*hubSub, 0, 4)
	for _, s := range h.subs {
		if ev.Path == s.prefix || underPrefix(ev.Path, s.prefix) {
			matched = append(matched, s)
		}
	}
	h.mu.Unlock()
	for _, s := range matched {
		s.fn(ev)
	}
}

// Cancel removes the subscription; it is safe to call more than once.
func (s *hubSub) Cancel() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
}

// Len reports the number of live subscriptions (used by teardown tests).
func (h *hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// SubscriberCount reports the number of live subscriptions on the store.
func (s *SQLiteStore) SubscriberCount() int { return s.hub.Len() }

// underPrefix reports whether path is strictly beneath prefix.
func underPrefix(path, prefix string) bool {
	return strings.HasPrefix(path, prefix+"/")
}
