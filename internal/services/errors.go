// Package services defines the business logic for chat turns, inventory,
// profiles, and notifications. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer; these values never reach a client verbatim.
package services

import "errors"

var (
	// ErrEmptyMessage is returned when a chat turn contains no text after
	// trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a chat turn exceeds the maximum
	// configured length limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrConversationNotFound indicates that the requested conversation
	// does not exist or is not accessible to the current user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrItemNotFound indicates that the requested inventory item does not
	// exist or has been removed.
	ErrItemNotFound = errors.New("inventory item not found")

	// ErrInvalidItem is returned when inventory input fails validation.
	ErrInvalidItem = errors.New("invalid inventory item")

	// ErrProfileNotFound indicates the user has not completed onboarding.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNotificationNotFound indicates that the requested notification
	// does not exist.
	ErrNotificationNotFound = errors.New("notification not found")
)
