package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure TurnService implements the interface.
var _ driving.TurnService = (*TurnService)(nil)

// Ensure TurnService can take custom prompts.
var _ driven.PromptStoreAware = (*TurnService)(nil)

// TurnConfig bounds one agent turn.
type TurnConfig struct {
	// MaxRetries is the number of regenerations after a failed validation.
	MaxRetries int

	// MaxToolRounds caps model round trips spent on tool calls per draft.
	MaxToolRounds int

	MaxTokens   int
	Temperature float64
}

// DefaultTurnConfig returns the turn bounds used when none are configured.
func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		MaxRetries:    1,
		MaxToolRounds: 3,
		MaxTokens:     1500,
		Temperature:   0.7,
	}
}

// TurnService drafts an agent utterance with tool access, validates it and
// regenerates it with forced evidence when a substantive claim was made
// without consulting the knowledge base.
type TurnService struct {
	llm       driven.LLMService
	tools     driving.ToolRegistry
	validator driving.ResponseValidator
	memory    driving.MemoryService
	prompts   driven.PromptStore
	cfg       TurnConfig
}

// NewTurnService creates a turn service. The memory service is optional.
func NewTurnService(
	llm driven.LLMService,
	tools driving.ToolRegistry,
	validator driving.ResponseValidator,
	memory driving.MemoryService,
	cfg TurnConfig,
) *TurnService {
	def := DefaultTurnConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = def.MaxToolRounds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return &TurnService{
		llm:       llm,
		tools:     tools,
		validator: validator,
		memory:    memory,
		cfg:       cfg,
	}
}

// SetPromptStore sets the prompt store for the agent persona.
func (t *TurnService) SetPromptStore(store driven.PromptStore) {
	t.prompts = store
}

// Respond produces an accepted utterance. The number of regenerations is
// bounded by MaxRetries; the last draft is returned even when it still
// fails validation.
func (t *TurnService) Respond(ctx context.Context, s *domain.SymposiumSession, req driving.TurnRequest) (*driving.TurnResult, error) {
	if s == nil {
		return nil, fmt.Errorf("respond: %w: nil session", domain.ErrInvalidInput)
	}
	if t.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if t.validator == nil {
		return nil, fmt.Errorf("respond: %w: no validator", domain.ErrInvalidInput)
	}

	system, err := t.systemPrompt(ctx, s, req)
	if err != nil {
		return nil, err
	}
	var specs []driven.ToolSpec
	if t.tools != nil {
		specs = t.tools.Specs(s.Domain)
	}

	messages := []driven.ChatMessage{{Role: driven.RoleUser, Content: req.Prompt}}
	var calls []string
	forced := false

	for attempt := 0; ; attempt++ {
		text, history, made, err := t.draft(ctx, s, system, specs, messages)
		if err != nil {
			return nil, fmt.Errorf("draft %s turn: %w", req.Agent, err)
		}
		messages = history
		calls = append(calls, made...)

		checked := calls
		if forced {
			checked = append(append([]string(nil), calls...), domain.ToolQueryKnowledgeBase.String())
		}
		outcome := t.validator.Validate(text, checked)
		if outcome.IsValid || attempt >= t.cfg.MaxRetries {
			if !outcome.IsValid {
				logger.Warn("%s turn still ungrounded after %d retries", req.Agent, attempt)
			}
			t.rememberTurn(ctx, s, text, req)
			return &driving.TurnResult{
				Text:       text,
				ToolCalls:  calls,
				Validation: outcome,
				Retries:    attempt,
			}, nil
		}

		logger.Info("%s made ungrounded claims, forcing retrieval (retry %d)", req.Agent, attempt+1)
		evidence := t.validator.ForceRetrieval(ctx, text, req.Agenda, s.Domain)
		forced = true
		messages = append(messages, driven.ChatMessage{
			Role:    driven.RoleUser,
			Content: "Evidence retrieved from your knowledge base:\n\n" + evidence + "\n\n" + outcome.RetryGuidance,
		})
	}
}

// draft runs the model until it answers with text. Tool calls are
// dispatched through the registry; once MaxToolRounds is spent the model
// is asked again without tools.
func (t *TurnService) draft(
	ctx context.Context,
	s *domain.SymposiumSession,
	system string,
	specs []driven.ToolSpec,
	messages []driven.ChatMessage,
) (string, []driven.ChatMessage, []string, error) {
	var made []string
	for round := 0; ; round++ {
		req := driven.CompletionRequest{
			System:      system,
			Messages:    messages,
			MaxTokens:   t.cfg.MaxTokens,
			Temperature: t.cfg.Temperature,
		}
		if round < t.cfg.MaxToolRounds {
			req.Tools = specs
		}
		resp, err := t.llm.Complete(ctx, req)
		if err != nil {
			return "", messages, made, err
		}
		if len(resp.ToolCalls) == 0 || t.tools == nil || req.Tools == nil {
			messages = append(messages, driven.ChatMessage{Role: driven.RoleAssistant, Content: resp.Text})
			return strings.TrimSpace(resp.Text), messages, made, nil
		}

		messages = append(messages, driven.ChatMessage{
			Role:      driven.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := t.tools.Dispatch(ctx, s, call)
			made = append(made, call.Name)
			messages = append(messages, driven.ChatMessage{
				Role:       driven.RoleTool,
				Content:    result.Content,
				ToolCallID: call.ID,
			})
		}
	}
}

func (t *TurnService) systemPrompt(ctx context.Context, s *domain.SymposiumSession, req driving.TurnRequest) (string, error) {
	expertise := req.Expertise
	if expertise == "" {
		expertise = s.Domain.Description()
	}
	system, err := renderPrompt(t.prompts, driven.PromptAgentSystem, req.Agent, expertise, s.Domain.String())
	if err != nil {
		return "", err
	}
	if plan, ok := s.Plan(req.Agent, req.Round); ok {
		system += "\n" + FormatPlan(plan)
	}
	if t.memory != nil && req.Agenda != "" {
		memCtx, err := t.memory.ContextForRound(ctx, s, req.Agenda, req.Questions, req.Round)
		if err != nil {
			logger.Warn("Memory context unavailable for %s: %v", req.Agent, err)
		} else {
			system += memCtx
		}
	}
	return system, nil
}

func (t *TurnService) rememberTurn(ctx context.Context, s *domain.SymposiumSession, text string, req driving.TurnRequest) {
	if t.memory == nil || text == "" {
		return
	}
	_, err := t.memory.Remember(ctx, s, text, map[string]any{"agent": req.Agent},
		domain.ImportanceLow, domain.TierShortTerm, req.Round)
	if err != nil {
		logger.Debug("Could not buffer %s turn: %v", req.Agent, err)
	}
}
