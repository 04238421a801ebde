// Package mcp provides an MCP (Model Context Protocol) server adapter for agora.
// It exposes the agent tools (knowledge base, memory recall and response
// validation) to MCP-compatible assistants.
package mcp

import "errors"

// ErrMissingToolRegistry is returned when the tool registry is not provided.
var ErrMissingToolRegistry = errors.New("mcp: tool registry is required")
