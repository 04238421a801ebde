// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// LLMService is the opaque completion capability used for insight extraction,
// contribution planning and agent turns.
//
// Failures are returned to the caller, never retried indefinitely.
//
// Implementations may include:
//   - OpenAI (GPT-4o)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Complete runs one completion. When tools are supplied the model may
	// answer with tool calls instead of, or as well as, text.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "user", "assistant" or "tool".
	Role string

	// Content is the message text.
	Content string

	// ToolCalls are the calls an assistant message requested.
	ToolCalls []domain.ToolCall

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string

	// Parameters is a JSON schema object.
	Parameters map[string]any
}

// CompletionRequest configures one completion call.
type CompletionRequest struct {
	System   string
	Messages []ChatMessage
	Tools    []ToolSpec

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// Completion is the model output.
type Completion struct {
	Text      string
	ToolCalls []domain.ToolCall
}

// ToolNames returns the names of the requested tool calls.
func (c *Completion) ToolNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.ToolCalls))
	for _, tc := range c.ToolCalls {
		names = append(names, tc.Name)
	}
	return names
}
