// Package store implements the entity store adapter: typed read, write,
// shallow-merge update, delete, and subscribe operations over a hierarchical
// path-addressed document tree. Paths use '/' separators ("inventory/abc").
//
// Semantics mirror a realtime key-value tree: writes are last-writer-wins
// per path, there is no multi-path transaction, and callers that need
// atomicity across two paths must design for idempotent retry. Direct
// children of a path are enumerated in insertion order, which is the
// ordering contract the repositories build on.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when no document exists at the requested path.
var ErrNotFound = errors.New("store: path not found")

// ErrUnauthenticated is returned by a user scope that has no identity
// attached. It is fatal for the current operation; the host app reacts by
// forcing re-authentication.
var ErrUnauthenticated = errors.New("store: no authenticated user")

// Entry is one direct child of a tree node: its key (the final path
// segment) and its raw JSON document.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Event describes a mutation observed by a subscriber. Value is nil when
// the path was deleted.
type Event struct {
	Path  string
	Value json.RawMessage
}

// Subscription is a registered change listener. Cancel must be called on
// component teardown; a leaked subscription keeps receiving events.
type Subscription interface {
	Cancel()
}

// Store is the adapter contract over the document tree.
//
// Read unmarshals the document at path into dst and returns ErrNotFound
// when the path is absent. Write replaces the document at path. Update
// performs a shallow merge of fields into the existing document (creating
// it when absent) without touching sibling keys. Delete removes the node
// and its entire subtree. Children lists the direct children of path in
// insertion order; intermediate tree levels carry no document of their own,
// so Segments lists the distinct immediate child segments beneath path,
// implicit intermediates included, in first-write order. Subscribe
// registers fn for every mutation at or beneath path; fn runs on the
// mutating goroutine and must not block.
type Store interface {
	Read(ctx context.Context, path string, dst any) error
	Write(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Children(ctx context.Context, path string) ([]Entry, error)
	Segments(ctx context.Context, path string) ([]string, error)
	Subscribe(path string, fn func(Event)) Subscription
}

// Scope narrows a Store to one authenticated user's subtree. Every path is
// prefixed with "users/<uid>/"; a scope constructed without an identity
// fails every call with ErrUnauthenticated.
//
// Repositories hold a Scope rather than the raw Store so that cross-user
// access is impossible by construction.
type Scope struct {
	store  Store
	userID string
}

// ScopeTo returns a Scope bound to userID.
func ScopeTo(s Store, userID string) Scope {
	return Scope{store: s, userID: userID}
}

// UserID returns the identity this scope is bound to.
func (s Scope) UserID() string { return s.userID }

func (s Scope) path(p string) string {
	if p == "" {
		return "users/" + s.userID
	}
	return "users/" + s.userID + "/" + p
}

func (s Scope) check() error {
	if s.userID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// Read reads a document beneath the user subtree.
func (s Scope) Read(ctx context.Context, path string, dst any) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.store.Read(ctx, s.path(path), dst)
}

// Write replaces a document beneath the user subtree.
func (s Scope) Write(ctx context.Context, path string, value any) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.store.Write(ctx, s.path(path), value)
}

// Update shallow-merges fields into a document beneath the user subtree.
func (s Scope) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.store.Update(ctx, s.path(path), fields)
}

// Delete removes a document and its subtree beneath the user subtree.
func (s Scope) Delete(ctx context.Context, path string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.store.Delete(ctx, s.path(path))
}

// Children lists direct children beneath the user subtree in insertion order.
func (s Scope) Children(ctx context.Context, path string) ([]Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.store.Children(ctx, s.path(path))
}

// Segments lists immediate child segments beneath the user subtree.
func (s Scope) Segments(ctx context.Context, path string) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.store.Segments(ctx, s.path(path))
}

// Subscribe registers a change listener beneath the user subtree. It
// returns a nil-safe no-op subscription when the scope is unauthenticated,
// since callbacks would never fire for an empty identity anyway.
func (s Scope) Subscribe(path string, fn func(Event)) Subscription {
	if s.userID == "" {
		return noopSubscription{}
	}
	return s.store.Subscribe(s.path(path), fn)
}

type noopSubscription struct{}

func (noopSubscription) Cancel() {}
