// This file provides the repository for conversations and their messages.
//
// Layout: users/<uid>/conversations/<convID> holds the conversation
// metadata; each message lives at users/<uid>/conversations/<convID>/
// messages/<msgID>. Messages are immutable and totally ordered by
// createdAt, with the store's insertion sequence breaking ties. Because
// the store offers no multi-path transaction, Create writes the
// conversation node first and the first message second; a failure in
// between leaves an empty conversation, which a retried Create-free
// append can still fill.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/store"
)

// ConversationRepo persists conversation threads in the user's subtree.
type ConversationRepo struct {
	Store store.Store
}

// NewConversationRepo constructs a ConversationRepo over the given store.
func NewConversationRepo(st store.Store) *ConversationRepo {
	return &ConversationRepo{Store: st}
}

// Create writes a new conversation node and appends the first user
// message. The returned conversation id lets the orchestrator finish the
// turn against the freshly created thread.
func (r *ConversationRepo) Create(ctx context.Context, userID, title, firstUtterance string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:          uuid.NewString(),
		Title:       title,
		CreatedAt:   now,
		LastUpdated: now,
	}
	sc := store.ScopeTo(r.Store, userID)
	if err := sc.Write(ctx, "conversations/"+conv.ID, conv); err != nil {
		return nil, writeErr(err)
	}
	if _, err := r.Append(ctx, userID, conv.ID, firstUtterance, domain.RoleUser); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get returns conversation metadata by id.
func (r *ConversationRepo) Get(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	sc := store.ScopeTo(r.Store, userID)
	var conv domain.Conversation
	if err := sc.Read(ctx, "conversations/"+id, &conv); err != nil {
		return nil, readErr(err)
	}
	return &conv, nil
}

// Append writes a new immutable message under the conversation and bumps
// lastUpdated. ErrNotFound when the conversation does not exist. Appends
// issued sequentially are observed in that order by History.
func (r *ConversationRepo) Append(ctx context.Context, userID, convID, content, role string) (*domain.Message, error) {
	conv, err := r.Get(ctx, userID, convID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	sc := store.ScopeTo(r.Store, userID)
	if err := sc.Write(ctx, "conversations/"+convID+"/messages/"+msg.ID, msg); err != nil {
		return nil, writeErr(err)
	}

	// lastUpdated must never move backwards, even under clock skew
	// between devices writing to the same subtree.
	bump := now
	if conv.LastUpdated.After(bump) {
		bump = conv.LastUpdated
	}
	if err := sc.Update(ctx, "conversations/"+convID, map[string]any{"lastUpdated": bump}); err != nil {
		return nil, writeErr(err)
	}
	return msg, nil
}

// Messages returns the conversation's most recent maxTurns messages in
// chronological order (oldest first). When the stored count exceeds
// maxTurns the oldest excess is dropped, never the most recent; maxTurns
// <= 0 returns everything.
func (r *ConversationRepo) Messages(ctx context.Context, userID, convID string, maxTurns int) ([]domain.Message, error) {
	if _, err := r.Get(ctx, userID, convID); err != nil {
		return nil, err
	}
	sc := store.ScopeTo(r.Store, userID)
	entries, err := sc.Children(ctx, "conversations/"+convID+"/messages")
	if err != nil {
		return nil, readErr(err)
	}

	msgs := make([]domain.Message, 0, len(entries))
	for _, e := range entries {
		var m domain.Message
		if err := json.Unmarshal(e.Value, &m); err != nil {
			return nil, fmt.Errorf("%w: decoding message %s: %v", ErrStoreRead, e.Key, err)
		}
		msgs = append(msgs, m)
	}
	// Entries arrive in insertion order; the stable sort keeps that order
	// for equal timestamps.
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })

	if maxTurns > 0 && len(msgs) > maxTurns {
		msgs = msgs[len(msgs)-maxTurns:]
	}
	return msgs, nil
}

// History converts the bounded message window into the role-tagged shape
// the completion service consumes.
func (r *ConversationRepo) History(ctx context.Context, userID, convID string, maxTurns int) ([]domain.ChatTurn, error) {
	msgs, err := r.Messages(ctx, userID, convID, maxTurns)
	if err != nil {
		return nil, err
	}
	turns := make([]domain.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, domain.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

// List returns conversation summaries sorted by lastUpdated descending.
// Preview carries the most recent message verbatim; display truncation is
// the caller's concern.
func (r *ConversationRepo) List(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	sc := store.ScopeTo(r.Store, userID)
	entries, err := sc.Children(ctx, "conversations")
	if err != nil {
		return nil, readErr(err)
	}

	out := make([]domain.ConversationSummary, 0, len(entries))
	for _, e := range entries {
		var conv domain.Conversation
		if err := json.Unmarshal(e.Value, &conv); err != nil {
			return nil, fmt.Errorf("%w: decoding conversation %s: %v", ErrStoreRead, e.Key, err)
		}
		preview := ""
		if msgs, err := r.Messages(ctx, userID, conv.ID, 1); err == nil && len(msgs) > 0 {
			preview = msgs[0].Content
		}
		out = append(out, domain.ConversationSummary{
			ID:          conv.ID,
			Title:       conv.Title,
			Preview:     preview,
			LastUpdated: conv.LastUpdated,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out, nil
}

// Delete removes a conversation and cascades to its messages.
func (r *ConversationRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := r.Get(ctx, userID, id); err != nil {
		return err
	}
	sc := store.ScopeTo(r.Store, userID)
	return writeErr(sc.Delete(ctx, "conversations/"+id))
}
