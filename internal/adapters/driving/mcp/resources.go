package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/agora/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for agora resources.
	uriScheme = "agora://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "collections",
		Name:        "collections",
		Description: "Paper collections per knowledge domain with chunk and document counts",
		MIMEType:    "application/json",
	}, s.handleCollectionsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "tools/usage",
		Name:        "tool-usage",
		Description: "Counters of tool calls dispatched since the server started",
		MIMEType:    "application/json",
	}, s.handleToolUsageResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "memory/{domain}",
		Name:        "domain-memory",
		Description: "Agent memory statistics for a knowledge domain",
		MIMEType:    "application/json",
	}, s.handleMemoryResource)
}

// handleCollectionsResource returns the per-domain collection statistics.
func (s *Server) handleCollectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Ingest == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	stats, err := s.ports.Ingest.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading collection stats: %w", err)
	}

	type collectionInfo struct {
		Domain      string `json:"domain"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Chunks      int    `json:"chunks"`
		Documents   int    `json:"documents"`
	}

	infos := make([]collectionInfo, len(stats))
	for i, st := range stats {
		infos[i] = collectionInfo{
			Domain:      st.Domain.String(),
			Name:        st.Name,
			Description: st.Description,
			Chunks:      st.Count,
			Documents:   st.Documents,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling collections: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleToolUsageResource returns the registry's dispatch counters.
func (s *Server) handleToolUsageResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	usage := s.ports.Tools.Usage()
	byKind := make(map[string]int, len(usage.ByKind))
	for k, v := range usage.ByKind {
		byKind[k.String()] = v
	}

	data, err := json.MarshalIndent(map[string]any{
		"total":     usage.Total,
		"succeeded": usage.Succeeded,
		"failed":    usage.Failed,
		"by_tool":   byKind,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling tool usage: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleMemoryResource returns memory statistics for one domain.
func (s *Server) handleMemoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Memory == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract domain from URI: agora://memory/{domain}
	d, ok := extractMemoryDomain(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	stats, err := s.ports.Memory.Statistics(ctx, domain.NewSymposiumSession("", d))
	if err != nil {
		return nil, fmt.Errorf("reading memory statistics: %w", err)
	}

	byTier := make(map[string]int, len(stats.ByTier))
	for tier, n := range stats.ByTier {
		byTier[tier.String()] = n
	}

	data, err := json.MarshalIndent(map[string]any{
		"domain":            d.String(),
		"total":             stats.Total,
		"by_tier":           byTier,
		"high_importance":   stats.HighImportance,
		"medium_importance": stats.MediumImportance,
		"low_importance":    stats.LowImportance,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling memory statistics: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// extractMemoryDomain extracts a concrete domain from a URI like agora://memory/{domain}.
func extractMemoryDomain(uri string) (domain.KnowledgeDomain, bool) {
	const prefix = uriScheme + "memory/"

	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}

	d := domain.KnowledgeDomain(strings.TrimPrefix(uri, prefix))
	if !d.IsValid() {
		return "", false
	}
	return d, true
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}
