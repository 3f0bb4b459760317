// Package repo implements the data access layer over the entity store
// adapter. Repositories are constructed with a store handle and scope each
// call to the requesting user's subtree; they contain no business rules
// beyond the write-side invariants the store itself cannot enforce.
//
// Error taxonomy:
//   - ErrNotFound: the referenced entity is absent or soft-deleted.
//   - ErrInvalidItem: caller input failed repository validation.
//   - ErrStoreRead / ErrStoreWrite: the adapter failed; transient, the
//     orchestrator decides whether to degrade or surface.
//   - store.ErrUnauthenticated passes through unwrapped so the HTTP layer
//     can trigger re-authentication.
package repo

import (
	"errors"
	"fmt"

	"github.com/nourishd/go-nourish-backend/internal/store"
)

var (
	// ErrNotFound is returned when a requested entity does not exist or
	// has been soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrInvalidItem is returned when caller input fails validation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrStoreRead wraps adapter read failures.
	ErrStoreRead = errors.New("store read failed")

	// ErrStoreWrite wraps adapter write failures.
	ErrStoreWrite = errors.New("store write failed")
)

// readErr normalizes adapter read errors: absence maps to ErrNotFound,
// authentication failures pass through, anything else becomes ErrStoreRead.
func readErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrUnauthenticated):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
}

// writeErr normalizes adapter write errors.
func writeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnauthenticated):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
}
