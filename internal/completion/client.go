// Package completion wraps the external chat-completion service behind a
// small stateless interface. The service holds no conversation state; it
// is handed the full bounded history and a fresh context snapshot on every
// call, and any transport failure, non-2xx status, or blank reply is a
// completion failure the orchestrator decides how to handle.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nourishd/go-nourish-backend/internal/assistant"
	"github.com/nourishd/go-nourish-backend/internal/domain"
)

// ErrEmptyCompletion is returned when the service answers successfully but
// with no usable text. Treated like any other transient failure.
var ErrEmptyCompletion = errors.New("completion: empty reply")

// Completer is the contract the orchestrator depends on.
type Completer interface {
	Complete(ctx context.Context, utterance string, history []domain.ChatTurn, snap *assistant.ContextSnapshot) (string, error)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Choices []struct {
		Index   int     `json:"index"`
		Message message `json:"message"`
	} `json:"choices"`
}

// Client calls an OpenAI-compatible chat-completions endpoint (Groq in
// production).
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewClient constructs a Client. timeout bounds a single HTTP exchange;
// the orchestrator layers its own per-attempt deadline on top via context.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		maxTokens: 1000,
		client:    &http.Client{Timeout: timeout},
	}
}

// Complete performs exactly one call to the completion endpoint.
func (c *Client) Complete(ctx context.Context, utterance string, history []domain.ChatTurn, snap *assistant.ContextSnapshot) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("completion: api key not configured")
	}

	msgs := make([]message, 0, len(history)+2)
	msgs = append(msgs, message{Role: "system", Content: systemPrompt(snap)})
	for _, t := range history {
		msgs = append(msgs, message{Role: t.Role, Content: t.Content})
	}
	// History already ends with the current utterance when the caller
	// persisted it first; only add it when missing.
	if len(history) == 0 || history[len(history)-1].Content != utterance {
		msgs = append(msgs, message{Role: domain.RoleUser, Content: utterance})
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("completion: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("completion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("completion: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion: status %d: %s", resp.StatusCode, truncateBody(raw))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("completion: parse response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(cr.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// systemPrompt renders the context snapshot into the instruction block the
// model sees before the conversation history.
func systemPrompt(snap *assistant.ContextSnapshot) string {
	var b strings.Builder
	b.WriteString("You are a helpful dietary assistant. Suggest practical recipes and ")
	b.WriteString("meal advice grounded in the user's pantry and health context.\n")

	if snap == nil {
		return b.String()
	}
	if snap.Profile.Name != "" {
		fmt.Fprintf(&b, "\nUser: %s", snap.Profile.Name)
		if snap.Profile.Age > 0 {
			fmt.Fprintf(&b, ", age %d", snap.Profile.Age)
		}
		if snap.Profile.BloodGroup != "" {
			fmt.Fprintf(&b, ", blood group %s", snap.Profile.BloodGroup)
		}
		b.WriteString("\n")
	}
	if len(snap.Preferences.MedicalConditions) > 0 {
		fmt.Fprintf(&b, "Medical conditions: %s\n", strings.Join(snap.Preferences.MedicalConditions, ", "))
	}
	if len(snap.Preferences.DietaryGoals) > 0 {
		fmt.Fprintf(&b, "Dietary goals: %s\n", strings.Join(snap.Preferences.DietaryGoals, ", "))
	}
	if len(snap.Preferences.Allergies) > 0 {
		fmt.Fprintf(&b, "Allergies (never suggest these): %s\n", strings.Join(snap.Preferences.Allergies, ", "))
	}
	if len(snap.Inventory) > 0 {
		b.WriteString("\nPantry inventory:\n")
		for _, line := range snap.Inventory {
			fmt.Fprintf(&b, "- %s: %s", line.Name, line.Amount)
			if line.ExpiryDate != nil {
				fmt.Fprintf(&b, " (expires %s)", line.ExpiryDate.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
		b.WriteString("Prefer ingredients that expire soonest.\n")
	} else {
		b.WriteString("\nThe pantry is currently empty.\n")
	}
	return b.String()
}

// truncateBody keeps error messages readable when the service returns a
// large HTML or JSON error page.
func truncateBody(raw []byte) string {
	const max = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
