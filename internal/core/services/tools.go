package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure ToolRegistry implements the interface.
var _ driving.ToolRegistry = (*ToolRegistry)(nil)

// toolHandler runs a call whose arguments already matched the schema.
type toolHandler func(ctx context.Context, s *domain.SymposiumSession, raw json.RawMessage) (string, error)

type registeredTool struct {
	kind     domain.ToolKind
	describe func(d domain.KnowledgeDomain) string
	schema   map[string]any
	compiled *jsonschema.Schema
	handler  toolHandler
}

// ToolRegistry maps tool kinds to typed handlers. Schemas are checked when
// a tool is registered and arguments are checked against them on dispatch.
type ToolRegistry struct {
	mu    sync.Mutex
	tools []registeredTool
	usage domain.ToolUsage
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{usage: domain.ToolUsage{ByKind: make(map[domain.ToolKind]int)}}
}

// RegisterTool adds a handler whose arguments decode into A. The schema
// must compile as a JSON schema describing an object.
func RegisterTool[A any](
	r *ToolRegistry,
	kind domain.ToolKind,
	describe func(d domain.KnowledgeDomain) string,
	schema map[string]any,
	fn func(ctx context.Context, s *domain.SymposiumSession, args A) (string, error),
) error {
	if _, ok := domain.ParseToolKind(kind.String()); !ok {
		return fmt.Errorf("register %s: %w", kind, domain.ErrUnknownTool)
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("register %s: %w", kind, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tools {
		if t.kind == kind {
			return fmt.Errorf("register %s: %w", kind, domain.ErrAlreadyExists)
		}
	}
	r.tools = append(r.tools, registeredTool{
		kind:     kind,
		describe: describe,
		schema:   schema,
		compiled: compiled,
		handler: func(ctx context.Context, s *domain.SymposiumSession, raw json.RawMessage) (string, error) {
			var args A
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			return fn(ctx, s, args)
		},
	})
	return nil
}

// Kinds lists registered tools in registration order.
func (r *ToolRegistry) Kinds() []domain.ToolKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]domain.ToolKind, len(r.tools))
	for i, t := range r.tools {
		kinds[i] = t.kind
	}
	return kinds
}

// Specs describes every registered tool for the given domain.
func (r *ToolRegistry) Specs(d domain.KnowledgeDomain) []driven.ToolSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	specs := make([]driven.ToolSpec, len(r.tools))
	for i, t := range r.tools {
		specs[i] = driven.ToolSpec{
			Name:        t.kind.String(),
			Description: t.describe(d),
			Parameters:  t.schema,
		}
	}
	return specs
}

// Dispatch runs one call. Unknown tools, arguments that do not match the
// schema and handler failures all come back as error results.
func (r *ToolRegistry) Dispatch(ctx context.Context, s *domain.SymposiumSession, call domain.ToolCall) domain.ToolResult {
	result := domain.ToolResult{CallID: call.ID}
	content, kind, err := r.dispatch(ctx, s, call)
	result.Kind = kind
	if err != nil {
		logger.Warn("Tool %s failed: %v", call.Name, err)
		result.Content = fmt.Sprintf("Error executing %s: %v", call.Name, err)
		result.IsError = true
	} else {
		result.Content = content
	}

	r.mu.Lock()
	r.usage.Total++
	if result.IsError {
		r.usage.Failed++
	} else {
		r.usage.Succeeded++
	}
	r.usage.ByKind[kind]++
	r.mu.Unlock()
	return result
}

func (r *ToolRegistry) dispatch(ctx context.Context, s *domain.SymposiumSession, call domain.ToolCall) (string, domain.ToolKind, error) {
	kind, ok := domain.ParseToolKind(call.Name)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", domain.ErrUnknownTool, call.Name)
	}
	tool, ok := r.lookup(kind)
	if !ok {
		return "", kind, fmt.Errorf("%w: %s is not registered", domain.ErrUnknownTool, kind)
	}

	raw := json.RawMessage(call.Arguments)
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", kind, fmt.Errorf("%w: arguments are not a JSON object", domain.ErrInvalidInput)
	}
	if result := tool.compiled.Validate(args); !result.Valid {
		return "", kind, fmt.Errorf("%w: %s", domain.ErrInvalidInput, schemaViolations(result))
	}

	var out string
	err := guard(kind.String(), func() error {
		var err error
		out, err = tool.handler(ctx, s, raw)
		return err
	})
	return out, kind, err
}

func (r *ToolRegistry) lookup(kind domain.ToolKind) (registeredTool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tools {
		if t.kind == kind {
			return t, true
		}
	}
	return registeredTool{}, false
}

// Usage reports dispatch counters.
func (r *ToolRegistry) Usage() domain.ToolUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.usage
	out.ByKind = make(map[domain.ToolKind]int, len(r.usage.ByKind))
	for k, v := range r.usage.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// compileSchema compiles a tool's argument schema. Tools always take a
// JSON object.
func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	if schema["type"] != "object" {
		return nil, fmt.Errorf("%w: schema type must be object", domain.ErrInvalidInput)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: encode schema: %v", domain.ErrInvalidInput, err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: compile schema: %v", domain.ErrInvalidInput, err)
	}
	return compiled, nil
}

// schemaViolations flattens a failed evaluation into one sorted message.
func schemaViolations(result *jsonschema.EvaluationResult) string {
	msgs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		msgs = append(msgs, e.Error())
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// knowledgeBaseArgs are the query_knowledge_base arguments.
type knowledgeBaseArgs struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

// recallMemoryArgs are the recall_memory arguments.
type recallMemoryArgs struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

var knowledgeBaseTopics = map[domain.KnowledgeDomain]string{
	domain.DomainElectrochemistry: "supercapacitors, capacitive deionization, EDL capacitors, and porous electrodes",
	domain.DomainMembraneScience:  "desalination, ion separation, element extraction, and membrane materials",
	domain.DomainBiology:          "ion channels (K+, Na+, Ca2+), selectivity filters, and biological membranes",
	domain.DomainNanofluidics:     "synthetic nanopores, nanochannels, nanofluidic devices, and confined transport",
}

// KnowledgeBaseDescription is the query_knowledge_base description for a domain.
func KnowledgeBaseDescription(d domain.KnowledgeDomain) string {
	topic, ok := knowledgeBaseTopics[d]
	if !ok {
		topic = "ion transport"
	}
	return fmt.Sprintf("Query your specialized knowledge base of curated papers on %s. "+
		"This retrieves relevant content from high-quality papers in your field, including full text, "+
		"figures, tables, and equations. Use this to support your arguments with specific evidence.", topic)
}

func knowledgeBaseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type": "string",
				"description": "The specific question or topic to search for in your knowledge base. " +
					"Be specific about what you want to know (e.g., 'pore size effects on ion selectivity' " +
					"or 'EDL capacitance in nanopores').",
			},
			"top_k": map[string]any{
				"type":        "integer",
				"description": "Number of relevant paper sections to retrieve (default: 5, max: 10)",
				"default":     DefaultToolTopK,
				"minimum":     1,
			},
		},
		"required": []string{"query"},
	}
}

func recallMemorySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What you want to remember from earlier rounds of this or previous symposia.",
			},
			"top_k": map[string]any{
				"type":        "integer",
				"description": "Number of memories to return (default: your memory recall limit)",
				"minimum":     1,
			},
		},
		"required": []string{"query"},
	}
}

// NewDefaultToolRegistry registers the knowledge base and memory tools.
// A nil memory service leaves recall_memory out.
func NewDefaultToolRegistry(retrieval driving.RetrievalService, memory driving.MemoryService) (*ToolRegistry, error) {
	r := NewToolRegistry()
	if retrieval == nil {
		return nil, fmt.Errorf("tool registry: %w: retrieval service required", domain.ErrInvalidInput)
	}
	err := RegisterTool(r, domain.ToolQueryKnowledgeBase, KnowledgeBaseDescription, knowledgeBaseSchema(),
		func(ctx context.Context, s *domain.SymposiumSession, args knowledgeBaseArgs) (string, error) {
			if s == nil {
				return "", errors.New("no active session")
			}
			topK := DefaultToolTopK
			if args.TopK != nil && *args.TopK > 0 {
				topK = min(*args.TopK, MaxToolTopK)
			}
			return retrieval.QueryAsTool(ctx, args.Query, s.Domain, topK), nil
		})
	if err != nil {
		return nil, err
	}
	if memory == nil {
		return r, nil
	}
	err = RegisterTool(r, domain.ToolRecallMemory,
		func(domain.KnowledgeDomain) string {
			return "Recall insights you recorded in earlier rounds, ranked by relevance and importance. " +
				"Use this to build on your previous contributions instead of repeating them."
		},
		recallMemorySchema(),
		func(ctx context.Context, s *domain.SymposiumSession, args recallMemoryArgs) (string, error) {
			if s == nil {
				return "", errors.New("no active session")
			}
			opts := domain.RecallOptions{}
			if args.TopK != nil {
				opts.TopK = *args.TopK
			}
			records, err := memory.Recall(ctx, s, args.Query, opts)
			if err != nil {
				return "", err
			}
			if len(records) == 0 {
				return fmt.Sprintf("No relevant memories found for: %s", args.Query), nil
			}
			return FormatMemories(records), nil
		})
	if err != nil {
		return nil, err
	}
	return r, nil
}
