package driving

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// TurnRequest is one agent utterance to produce.
type TurnRequest struct {
	Agent     string
	Expertise string
	Prompt    string
	Agenda    string
	Questions []string
	Round     int
}

// TurnResult is an accepted utterance.
type TurnResult struct {
	Text       string
	ToolCalls  []string
	Validation domain.ValidationOutcome
	Retries    int
}

// TurnService drafts, grounds and validates agent utterances.
type TurnService interface {
	Respond(ctx context.Context, s *domain.SymposiumSession, req TurnRequest) (*TurnResult, error)
}

// ToolRegistry dispatches model tool calls to typed handlers.
type ToolRegistry interface {
	// Dispatch executes one call. Unknown tools and bad arguments produce
	// an error result rather than a Go error.
	Dispatch(ctx context.Context, s *domain.SymposiumSession, call domain.ToolCall) domain.ToolResult

	// Kinds lists registered tools in registration order.
	Kinds() []domain.ToolKind

	// Specs describes the registered tools to a model, with descriptions
	// tailored to the agent's domain.
	Specs(d domain.KnowledgeDomain) []driven.ToolSpec

	// Usage reports dispatch counters.
	Usage() domain.ToolUsage
}
