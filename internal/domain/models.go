// Package domain defines the entities persisted in the per-user document
// tree: profile, preferences, pantry inventory, conversations with their
// messages, and notifications. All types serialize to JSON documents stored
// by the entity store adapter; none of them carry persistence logic.
package domain

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Notification types.
const (
	NotificationInventory = "inventory"
	NotificationRecipe    = "recipe"
	NotificationCustom    = "custom"
)

// UserProfile holds the identity-scoped profile a user fills in during
// onboarding. Profiles are only ever updated, never deleted.
type UserProfile struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Age        int       `json:"age,omitempty"`
	BloodGroup string    `json:"bloodGroup,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Preferences captures the dietary context a user selected. Values are
// free-form strings; the application-options vocabulary is advisory only,
// no referential integrity is enforced against it.
type Preferences struct {
	MedicalConditions []string `json:"medicalConditions"`
	DietaryGoals      []string `json:"dietaryGoals"`
	Allergies         []string `json:"allergies"`
}

// Empty reports whether no preference values are set.
func (p Preferences) Empty() bool {
	return len(p.MedicalConditions) == 0 && len(p.DietaryGoals) == 0 && len(p.Allergies) == 0
}

// InventoryItem is a perishable pantry item. Items are soft-deleted so that
// notification history referencing them stays resolvable.
//
// Invariant enforced by the inventory repository (the store does not):
// BoughtDate <= ExpiryDate whenever an expiry is present.
type InventoryItem struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Amount     string     `json:"amount"`
	BoughtDate time.Time  `json:"boughtDate"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	IsDeleted  bool       `json:"isDeleted"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// InventoryPatch is a merge patch applied to an existing item. Nil fields
// are left untouched.
type InventoryPatch struct {
	Name       *string    `json:"name,omitempty"`
	Amount     *string    `json:"amount,omitempty"`
	BoughtDate *time.Time `json:"boughtDate,omitempty"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// Conversation is an append-only thread of messages owned by one user.
// LastUpdated is bumped on every append and is monotonically non-decreasing.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Message is a single utterance within a conversation. Messages are
// immutable once written; CreatedAt is the ordering key, with the store
// insertion sequence breaking ties.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatTurn is a role-tagged history entry in the shape the completion
// service consumes.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationSummary is the listing projection of a conversation: its
// metadata plus a preview of the most recent message.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Preview     string    `json:"preview"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Notification is produced by background rules (expiry scans) and mutated
// only via mark-as-read.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	Timestamp time.Time `json:"timestamp"`
}

// ApplicationOptions is the fixed vocabulary presented by onboarding and
// profile screens. Stored once at the store root, outside any user scope.
type ApplicationOptions struct {
	DietaryGoals      []string `json:"dietaryGoals"`
	MedicalConditions []string `json:"medicalConditions"`
	BloodGroups       []string `json:"bloodGroups"`
}
