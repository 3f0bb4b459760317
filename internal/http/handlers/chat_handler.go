// Chat HTTP handlers.
//
// This file exposes the conversation pipeline endpoints:
//   - POST   /chat/turns                    (process one turn)
//   - GET    /conversations                 (list summaries)
//   - GET    /conversations/{id}/messages   (chronological history)
//   - DELETE /conversations/{id}            (cascade delete)
//
// Idempotency: if the client supplies an Idempotency-Key header together
// with X-Conversation-ID and a previous successful turn exists for
// (user, conversation, key), the handler replays the stored history
// instead of generating a second assistant reply, and sets
// `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/http/middleware"
	"github.com/nourishd/go-nourish-backend/internal/repo"
	"github.com/nourishd/go-nourish-backend/internal/services"
	"github.com/nourishd/go-nourish-backend/internal/utils"
)

// previewRunes caps the conversation preview length in list responses.
// Truncation is a display concern, applied here rather than stored.
const previewRunes = 80

//
// DTOs
//

// TurnRequest is the JSON payload for one chat turn.
type TurnRequest struct {
	// ConversationID continues an existing thread; empty starts a new one.
	ConversationID string `json:"conversation_id"`
	// Message is the user utterance. It must be non-empty after trimming.
	Message string `json:"message" binding:"required,min=1"`
}

// TurnResponse wraps the orchestrator result.
type TurnResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
	Degraded       bool             `json:"degraded,omitempty"`
}

// ListConversationsResponse wraps conversation summaries.
type ListConversationsResponse struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
}

// ListMessagesResponse wraps a chronological message window.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
// CRLF/CR to LF, runs of 3+ LFs collapsed to two, surrounding whitespace
// trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncatePreview clips a preview string by rune count.
func truncatePreview(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max]) + "…"
	}
	return s
}

//
// Handlers
//

// PostTurn processes one chat turn: it persists the user utterance,
// invokes the completion pipeline, and returns the refreshed message list.
func (h *Handlers) PostTurn(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}
	msg := sanitizeContent(req.Message)
	convID := strings.TrimSpace(req.ConversationID)
	if convID == "" {
		convID = strings.TrimSpace(c.GetHeader(middleware.HeaderConversationID))
	}

	// Replay: serve the stored history without a second completion call.
	if middleware.IsReplay(c) && convID != "" {
		msgs, err := h.chatSvc.History(ctx, uid, convID, 0)
		if err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, TurnResponse{ConversationID: convID, Messages: msgs})
			return
		}
		// Fall through and process normally when the replay lookup raced
		// a deletion.
	}

	res, err := h.chatSvc.Turn(ctx, uid, msg, convID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is empty")
		case errors.Is(err, services.ErrMessageTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		case errors.Is(err, services.ErrConversationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeTurnFailed, "could not process turn")
		}
		return
	}

	// Record the turn for idempotent retries when the client supplied a key.
	if key, okKey := middleware.GetIdempotencyKey(c); okKey {
		if db := dbFrom(c); db != nil {
			lastID := ""
			if n := len(res.Messages); n > 0 {
				lastID = res.Messages[n-1].ID
			}
			_, _ = repo.CreateIdempotency(ctx, db, uid, res.ConversationID, key, lastID, http.StatusOK, idempotencyTTLFrom(c))
		}
	}

	ok(c, http.StatusOK, TurnResponse(*res))
}

// ListConversations returns the user's conversations, most recently
// active first, each with a clipped preview of its latest message.
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	items, err := h.chatSvc.List(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}
	for i := range items {
		items[i].Preview = truncatePreview(items[i].Preview, previewRunes)
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: items})
}

// ListMessages returns the most recent `limit` messages of a conversation
// in chronological order (oldest first). limit=0 returns everything.
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	convID := c.Param("id")
	limit := utils.LimitParam(c.Query("limit"))

	msgs, err := h.chatSvc.History(ctx, uid, convID, limit)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list messages")
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs})
}

// DeleteConversation removes a conversation and cascades to its messages.
func (h *Handlers) DeleteConversation(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	convID := c.Param("id")

	if err := h.chatSvc.Delete(ctx, uid, convID); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete conversation")
		return
	}
	noContent(c)
}

//
// Idempotency plumbing (set by the router)
//

const (
	ctxKeyDB      = "idem.db"
	ctxKeyIdemTTL = "idem.ttl"
)

// WithIdempotencyStore stashes the relational handle and TTL used to
// record completed turns for replay detection.
func WithIdempotencyStore(db *gorm.DB, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxKeyDB, db)
		c.Set(ctxKeyIdemTTL, ttl)
		c.Next()
	}
}

func dbFrom(c *gin.Context) *gorm.DB {
	if v, ok := c.Get(ctxKeyDB); ok {
		if db, ok := v.(*gorm.DB); ok {
			return db
		}
	}
	return nil
}

func idempotencyTTLFrom(c *gin.Context) time.Duration {
	if v, ok := c.Get(ctxKeyIdemTTL); ok {
		if d, ok := v.(time.Duration); ok && d > 0 {
			return d
		}
	}
	return 24 * time.Hour
}
