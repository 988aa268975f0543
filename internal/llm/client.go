// Package llm defines the model gateway: the interface for sending turns to a
// hosted LLM endpoint and receiving text, tool calls, and grounding citations.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
)

// Persona names a configuration bundle shaping model tone and determinism.
type Persona string

const (
	PersonaPrecise  Persona = "precise"
	PersonaDefault  Persona = "default"
	PersonaCreative Persona = "creative"
)

// ParsePersona validates a raw persona name.
func ParsePersona(s string) (Persona, error) {
	switch Persona(s) {
	case PersonaPrecise, PersonaDefault, PersonaCreative:
		return Persona(s), nil
	}
	return "", fmt.Errorf("unknown persona %q", s)
}

// Temperature returns the sampling temperature for a persona.
func (p Persona) Temperature() float64 {
	switch p {
	case PersonaPrecise:
		return 0.2
	case PersonaCreative:
		return 0.9
	default:
		return 0.45
	}
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolResult is the client-side outcome of one tool call, sent back to the
// model. Every call receives exactly one result, success or not.
type ToolResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// TurnResult is one model response: text and/or tool calls, plus any grounding
// citations attached to the text.
type TurnResult struct {
	Text      string          `json:"text"`
	ToolCalls []ToolCall      `json:"toolCalls,omitempty"`
	Citations []domain.Source `json:"citations,omitempty"`
}

// FunctionDeclaration describes a callable tool to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ConversationOptions configure one stateful remote conversation.
type ConversationOptions struct {
	Persona     Persona
	Instruction string
	Tools       []FunctionDeclaration
	History     []domain.Message
}

// Conversation is one stateful exchange bound to a session's history. It is
// not safe for concurrent use; the orchestrator serializes turns per session.
type Conversation interface {
	// SendTurn submits new user content and returns the model's response.
	SendTurn(ctx context.Context, text string, attachment *domain.Attachment) (*TurnResult, error)

	// SendToolResults submits one result per outstanding tool call and
	// returns the model's follow-up response.
	SendToolResults(ctx context.Context, results []ToolResult) (*TurnResult, error)
}

// Client is the interface model providers implement.
type Client interface {
	// StartConversation opens a conversation seeded with prior history.
	StartConversation(opts ConversationOptions) Conversation

	// Name returns the provider name (e.g., "gemini").
	Name() string
}

// ProviderError is returned when the remote endpoint fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status (429, 500, ...)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsRateLimited reports whether err is a 429-class provider error, the only
// class of failure the gateway retries.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == 429
}
