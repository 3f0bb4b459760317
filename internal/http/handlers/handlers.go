// Handler wiring.
//
// Handlers are transport-thin: they validate input, call application
// services through narrow interfaces, and translate results into HTTP
// responses. The service interfaces are declared here, on the consumer
// side, so the transport layer never depends on service internals.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
	"github.com/nourishd/go-nourish-backend/internal/services"
)

// ChatService drives chat turns and conversation listings.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type ChatService interface {
	// Turn processes one utterance; empty conversationID creates a thread.
	Turn(ctx context.Context, userID, utterance, conversationID string) (*services.TurnResult, error)
	// List returns conversation summaries, most recently active first.
	List(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	// History returns the most recent limit messages, oldest first.
	History(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error)
	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, userID, conversationID string) error
}

// InventoryService manages pantry items.
type InventoryService interface {
	List(ctx context.Context, userID string) ([]domain.InventoryItem, error)
	Add(ctx context.Context, userID string, draft repo.ItemDraft) (*domain.InventoryItem, error)
	Update(ctx context.Context, userID, id string, patch domain.InventoryPatch) (*domain.InventoryItem, error)
	Remove(ctx context.Context, userID, id string) error
}

// ProfileService manages the user profile, preferences, and vocabularies.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	SaveProfile(ctx context.Context, userID string, p domain.UserProfile) (*domain.UserProfile, error)
	GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error)
	SavePreferences(ctx context.Context, userID string, prefs domain.Preferences) error
	Options(ctx context.Context) (*domain.ApplicationOptions, error)
}

// NotificationService lists notifications and marks them read.
type NotificationService interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// Handlers groups the HTTP endpoints for chat, inventory, profile, and
// notifications.
type Handlers struct {
	chatSvc  ChatService
	invSvc   InventoryService
	profSvc  ProfileService
	notifSvc NotificationService
}

// New constructs a Handlers instance bound to the given services.
func New(chatSvc ChatService, invSvc InventoryService, profSvc ProfileService, notifSvc NotificationService) *Handlers {
	return &Handlers{chatSvc: chatSvc, invSvc: invSvc, profSvc: profSvc, notifSvc: notifSvc}
}

// userID extracts the authenticated user id from Gin context (set by the
// auth middleware). If absent, it falls back to the "X-User-ID" header
// (tests use it). An empty result means the request is unauthenticated;
// the auth middleware normally rejects those before a handler runs.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}
