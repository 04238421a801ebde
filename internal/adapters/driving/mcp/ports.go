package mcp

import (
	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Tools dispatches query_knowledge_base and recall_memory.
	Tools driving.ToolRegistry

	// Validator backs validate_response. Optional.
	Validator driving.ResponseValidator

	// Ingest reports collection statistics. Optional.
	Ingest driving.IngestService

	// Memory reports per-domain memory statistics. Optional.
	Memory driving.MemoryService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Tools == nil {
		return ErrMissingToolRegistry
	}
	return nil
}
