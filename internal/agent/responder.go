// Package agent defines the boundary to the dialogue collaborator that
// decides what the assistant says. The tool-selection and LLM logic live
// behind this interface, outside this service.
package agent

import (
	"context"
	"fmt"
	"strings"
)

// Request is one user turn plus the conversation digest the collaborator
// needs for continuity.
type Request struct {
	UserID         string
	SessionID      string
	Text           string
	ContextSummary string
}

// Responder produces the assistant's reply for one user turn.
type Responder interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// MockResponder is a deterministic stand-in used in development and tests.
type MockResponder struct{}

func NewMockResponder() *MockResponder { return &MockResponder{} }

func (*MockResponder) Reply(_ context.Context, req Request) (string, error) {
	text := strings.ToLower(strings.TrimSpace(req.Text))
	switch {
	case text == "":
		return "I didn't catch that. What are you looking for today?", nil
	case strings.Contains(text, "cart"):
		return "I can set up a cart for you. Which product would you like?", nil
	case req.ContextSummary != "":
		return fmt.Sprintf("Picking up where we left off. You said: %s", req.Text), nil
	default:
		return fmt.Sprintf("You said: %s", req.Text), nil
	}
}
