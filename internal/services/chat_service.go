// Package services – ChatService
//
// This file implements the ChatService, the orchestrator of a single chat
// turn. A turn resolves (or lazily creates) the conversation, persists the
// user utterance, gathers the bounded history and a fresh context snapshot
// concurrently, drives exactly one completion call with a bounded timeout
// and a single retry, and persists the assistant reply only on success.
//
// Failure posture: if the completion call fails both attempts, nothing
// beyond the user's own message is persisted; the response carries a
// synthesized assistant-role notice for display only, so the stored log
// reflects only real exchanges. A turn abandoned mid-flight leaves the
// conversation consistent for the same reason: every write commits
// independently and the assistant reply is simply never produced.
//
// Observability: Turn is OpenTelemetry-instrumented; spans carry the
// conversation and user identifiers.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nourishd/go-nourish-backend/internal/assistant"
	"github.com/nourishd/go-nourish-backend/internal/completion"
	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
)

// FallbackReply is the synthesized assistant message shown when the
// completion service fails. It is never persisted.
const FallbackReply = "I'm having trouble processing your request right now. Please try again in a moment."

// ChatService orchestrates chat turns across the conversation repository,
// the context assembler, and the completion service.
type ChatService struct {
	Conversations *repo.ConversationRepo
	Assembler     *assistant.Assembler
	Completer     completion.Completer

	// MaxTurns bounds the history window handed to the completion
	// service; conversations grow without limit but prompts must not.
	MaxTurns int

	// MaxPromptRunes caps a single utterance by rune length.
	MaxPromptRunes int

	// CallTimeout bounds each completion attempt. A timed-out or failed
	// first attempt is retried exactly once with the same inputs.
	CallTimeout time.Duration

	// Title generation config
	TitleMaxLen int
	TitleLocale language.Tag
}

// NewChatService constructs a ChatService with sane defaults.
func NewChatService(conversations *repo.ConversationRepo, asm *assistant.Assembler, comp completion.Completer) *ChatService {
	return &ChatService{
		Conversations:  conversations,
		Assembler:      asm,
		Completer:      comp,
		MaxTurns:       20,
		MaxPromptRunes: 2000,
		CallTimeout:    30 * time.Second,
		TitleMaxLen:    60,
		TitleLocale:    language.English,
	}
}

// TurnResult is what a completed turn hands back to the transport layer:
// the conversation id and the refreshed authoritative message list.
// Degraded marks a turn whose assistant reply is the synthesized fallback;
// that final message is not part of the persisted log.
type TurnResult struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
	Degraded       bool             `json:"degraded,omitempty"`
}

// Turn processes one user utterance. An empty conversationID lazily
// creates a conversation titled after the utterance.
//
// The returned message list is re-read from the store after the final
// append rather than spliced locally, so concurrent writers (another
// device on the same account) can never diverge the rendered order from
// the authoritative one.
func (s *ChatService) Turn(ctx context.Context, userID, utterance, conversationID string) (*TurnResult, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(utterance) > s.MaxPromptRunes {
		return nil, ErrMessageTooLong
	}

	// Resolve or create the conversation; either way the user message is
	// committed before the completion call, so a failed call never loses
	// the user's input.
	if conversationID == "" {
		conv, err := s.Conversations.Create(ctx, userID, s.deriveTitle(utterance), utterance)
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
	} else {
		if _, err := s.Conversations.Append(ctx, userID, conversationID, utterance, domain.RoleUser); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrConversationNotFound
			}
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	// History and snapshot have no ordering dependency; fetch them
	// concurrently.
	var (
		history []domain.ChatTurn
		snap    *assistant.ContextSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.Conversations.History(gctx, userID, conversationID, s.MaxTurns)
		if err != nil {
			return err
		}
		history = h
		return nil
	})
	g.Go(func() error {
		sn, err := s.Assembler.Build(gctx, userID)
		if err != nil {
			return err
		}
		snap = sn
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reply, err := s.complete(ctx, utterance, history, snap)
	if err != nil {
		log.Warn().
			Err(err).
			Str("conversation_id", conversationID).
			Str("user_id", userID).
			Msg("completion failed; returning fallback reply")
		return s.degradedResult(ctx, userID, conversationID)
	}

	if _, err := s.Conversations.Append(ctx, userID, conversationID, reply, domain.RoleAssistant); err != nil {
		return nil, err
	}

	msgs, err := s.Conversations.Messages(ctx, userID, conversationID, s.MaxTurns)
	if err != nil {
		return nil, err
	}
	return &TurnResult{ConversationID: conversationID, Messages: msgs}, nil
}

// complete drives the completion call with a per-attempt timeout and one
// retry on failure. The caller's context cancels both attempts.
func (s *ChatService) complete(ctx context.Context, utterance string, history []domain.ChatTurn, snap *assistant.ContextSnapshot) (string, error) {
	attempt := func() (string, error) {
		actx := ctx
		if s.CallTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, s.CallTimeout)
			defer cancel()
		}
		return s.Completer.Complete(actx, utterance, history, snap)
	}

	reply, err := attempt()
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		// Caller abandoned the turn; do not spend a second attempt.
		return "", err
	}
	return attempt()
}

// degradedResult reloads the persisted history (which now ends with the
// user's message) and appends the synthesized fallback for display only.
func (s *ChatService) degradedResult(ctx context.Context, userID, conversationID string) (*TurnResult, error) {
	msgs, err := s.Conversations.Messages(ctx, userID, conversationID, s.MaxTurns)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   FallbackReply,
		CreatedAt: time.Now().UTC(),
	})
	return &TurnResult{ConversationID: conversationID, Messages: msgs, Degraded: true}, nil
}

// Conversations and history pass-throughs used by the transport layer.

// List returns the user's conversation summaries, most recent first.
func (s *ChatService) List(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return s.Conversations.List(ctx, userID)
}

// History returns the most recent limit messages in chronological order.
func (s *ChatService) History(ctx context.Context, userID, conversationID string, limit int) ([]domain.Message, error) {
	msgs, err := s.Conversations.Messages(ctx, userID, conversationID, limit)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	return msgs, err
}

// Delete removes a conversation and its messages.
func (s *ChatService) Delete(ctx context.Context, userID, conversationID string) error {
	err := s.Conversations.Delete(ctx, userID, conversationID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// --- Title derivation ---

// deriveTitle produces a deterministic short title from the first
// utterance: stop words dropped, the remainder title-cased, at most eight
// words, clipped to TitleMaxLen runes. Falls back to "New chat" when
// nothing survives filtering.
func (s *ChatService) deriveTitle(utterance string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(utterance), -1)
	if len(toks) == 0 {
		return "New chat"
	}

	titleCaser := cases.Title(s.titleLocaleOrDefault())
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return "New chat"
	}
	return s.clipTitle(strings.Join(out, " "))
}

// clipTitle truncates a generated title to the configured maximum rune length.
func (s *ChatService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

func (s *ChatService) titleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// Extract Unicode letters with optional trailing numbers.
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}
