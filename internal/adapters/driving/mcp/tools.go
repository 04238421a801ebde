package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// QueryInput is the input schema for the query_knowledge_base tool.
type QueryInput struct {
	Query  string `json:"query" jsonschema:"the specific question or topic to search for in the paper collections"`
	Domain string `json:"domain,omitempty" jsonschema:"knowledge domain: electrochemistry, membrane_science, biology, nanofluidics or all (default all)"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"number of paper sections to retrieve (default 5, max 10)"`
}

// RecallInput is the input schema for the recall_memory tool.
type RecallInput struct {
	Query       string `json:"query" jsonschema:"what to remember from earlier rounds"`
	Domain      string `json:"domain" jsonschema:"knowledge domain whose agent memory is searched"`
	SymposiumID string `json:"symposium_id,omitempty" jsonschema:"symposium the recall belongs to (default: a new symposium)"`
	TopK        int    `json:"top_k,omitempty" jsonschema:"number of memories to return"`
}

// PlotInput is the input schema for the create_plot tool.
type PlotInput struct {
	PlotType string         `json:"plot_type" jsonschema:"type of plot: line, bar or scatter"`
	Data     map[string]any `json:"data" jsonschema:"data to plot, e.g. {\"x\": [1,2,3], \"y\": [4,5,6]} or {\"labels\": [\"A\",\"B\"], \"values\": [10,20]}"`
	Title    string         `json:"title,omitempty" jsonschema:"plot title"`
	XLabel   string         `json:"xlabel,omitempty" jsonschema:"x-axis label"`
	YLabel   string         `json:"ylabel,omitempty" jsonschema:"y-axis label"`
	SavePath string         `json:"save_path,omitempty" jsonschema:"file name for the figure (derived from the title if not provided)"`
}

// ConceptMapInput is the input schema for the create_concept_map tool.
type ConceptMapInput struct {
	Concepts      []string   `json:"concepts" jsonschema:"concept or theory names to include in the map"`
	Relationships [][]string `json:"relationships" jsonschema:"relationships as [source, target, label] arrays"`
	Title         string     `json:"title,omitempty" jsonschema:"title for the concept map"`
	Layout        string     `json:"layout,omitempty" jsonschema:"graph layout: spring, circular or hierarchical (default spring)"`
	SavePath      string     `json:"save_path,omitempty" jsonschema:"file name for the figure (derived from the title if not provided)"`
}

// ToolOutput is the output schema of the dispatched tools.
type ToolOutput struct {
	Tool    string `json:"tool"`
	Domain  string `json:"domain"`
	Content string `json:"content"`
}

// ValidateInput is the input schema for the validate_response tool.
type ValidateInput struct {
	Text      string   `json:"text" jsonschema:"the drafted utterance to check"`
	ToolCalls []string `json:"tool_calls,omitempty" jsonschema:"names of the tools called while drafting"`
}

// ValidateOutput is the output schema for the validate_response tool.
type ValidateOutput struct {
	Valid         bool     `json:"valid"`
	Class         string   `json:"class"`
	RetryGuidance string   `json:"retry_guidance,omitempty"`
	Claims        []string `json:"claims,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
// Only tools present in the registry are exposed.
func (s *Server) registerTools() {
	descriptions := make(map[string]string)
	for _, spec := range s.ports.Tools.Specs(domain.DomainAll) {
		descriptions[spec.Name] = spec.Description
	}

	for _, kind := range s.ports.Tools.Kinds() {
		switch kind {
		case domain.ToolQueryKnowledgeBase:
			mcp.AddTool(s.server, &mcp.Tool{
				Name:        kind.String(),
				Description: descriptions[kind.String()],
			}, s.handleQuery)
		case domain.ToolRecallMemory:
			mcp.AddTool(s.server, &mcp.Tool{
				Name:        kind.String(),
				Description: descriptions[kind.String()],
			}, s.handleRecall)
		case domain.ToolCreatePlot:
			mcp.AddTool(s.server, &mcp.Tool{
				Name:        kind.String(),
				Description: descriptions[kind.String()],
			}, s.handlePlot)
		case domain.ToolCreateConceptMap:
			mcp.AddTool(s.server, &mcp.Tool{
				Name:        kind.String(),
				Description: descriptions[kind.String()],
			}, s.handleConceptMap)
		}
	}

	if s.ports.Validator != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name: "validate_response",
			Description: "Check whether a drafted utterance is grounded. Substantive claims must be " +
				"backed by a query_knowledge_base call; failing drafts come back with retry guidance.",
		}, s.handleValidate)
	}
}

// handleQuery handles the query_knowledge_base tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, ToolOutput, error) {
	d := domain.DomainAll
	if input.Domain != "" {
		parsed, err := domain.ParseDomain(input.Domain)
		if err != nil {
			return nil, ToolOutput{}, err
		}
		d = parsed
	}

	out, err := s.dispatch(ctx, "", d, domain.ToolQueryKnowledgeBase, searchArgs(input.Query, input.TopK))
	return nil, out, err
}

// handleRecall handles the recall_memory tool invocation.
func (s *Server) handleRecall(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecallInput,
) (*mcp.CallToolResult, ToolOutput, error) {
	d, err := domain.ParseDomain(input.Domain)
	if err != nil {
		return nil, ToolOutput{}, err
	}
	if d == domain.DomainAll {
		return nil, ToolOutput{}, fmt.Errorf("%w: memory is kept per domain", domain.ErrInvalidDomain)
	}

	out, err := s.dispatch(ctx, input.SymposiumID, d, domain.ToolRecallMemory, searchArgs(input.Query, input.TopK))
	return nil, out, err
}

// handlePlot handles the create_plot tool invocation.
func (s *Server) handlePlot(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PlotInput,
) (*mcp.CallToolResult, ToolOutput, error) {
	out, err := s.dispatch(ctx, "", domain.DomainAll, domain.ToolCreatePlot, input)
	return nil, out, err
}

// handleConceptMap handles the create_concept_map tool invocation.
func (s *Server) handleConceptMap(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ConceptMapInput,
) (*mcp.CallToolResult, ToolOutput, error) {
	if input.Relationships == nil {
		input.Relationships = [][]string{}
	}
	out, err := s.dispatch(ctx, "", domain.DomainAll, domain.ToolCreateConceptMap, input)
	return nil, out, err
}

func searchArgs(query string, topK int) map[string]any {
	args := map[string]any{"query": query}
	if topK > 0 {
		args["top_k"] = topK
	}
	return args
}

// handleValidate handles the validate_response tool invocation.
func (s *Server) handleValidate(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateInput,
) (*mcp.CallToolResult, ValidateOutput, error) {
	outcome := s.ports.Validator.Validate(input.Text, input.ToolCalls)
	return nil, ValidateOutput{
		Valid:         outcome.IsValid,
		Class:         string(outcome.Class),
		RetryGuidance: outcome.RetryGuidance,
		Claims:        outcome.Claims,
	}, nil
}

// dispatch encodes the arguments and runs a registry tool inside a throwaway session for the domain.
func (s *Server) dispatch(
	ctx context.Context,
	symposiumID string,
	d domain.KnowledgeDomain,
	kind domain.ToolKind,
	args any,
) (ToolOutput, error) {
	if symposiumID == "" {
		symposiumID = domain.NewSymposiumID(s.now())
	}
	session := domain.NewSymposiumSession(symposiumID, d)

	raw, err := json.Marshal(args)
	if err != nil {
		return ToolOutput{}, fmt.Errorf("encoding arguments: %w", err)
	}

	result := s.ports.Tools.Dispatch(ctx, session, domain.ToolCall{
		ID:        "mcp_" + kind.String(),
		Name:      kind.String(),
		Arguments: string(raw),
	})
	if result.IsError {
		return ToolOutput{}, errors.New(result.Content)
	}
	return ToolOutput{Tool: kind.String(), Domain: d.String(), Content: result.Content}, nil
}
