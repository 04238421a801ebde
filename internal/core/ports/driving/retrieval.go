package driving

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// RetrievalService queries the knowledge base.
type RetrievalService interface {
	// Query returns the nearest chunks for a domain. For domain.DomainAll
	// each domain contributes its own top-k.
	Query(ctx context.Context, text string, d domain.KnowledgeDomain, topK int) ([]domain.RetrievedChunk, error)

	// FormatResults renders hits as numbered source blocks.
	FormatResults(results []domain.RetrievedChunk) string

	// QueryForAgent returns a context block for an LLM. It never fails:
	// empty results and errors are reported as plain-language notices.
	QueryForAgent(ctx context.Context, text string, d domain.KnowledgeDomain, topK int) string

	// QueryAsTool wraps QueryForAgent in the knowledge-base tool framing.
	QueryAsTool(ctx context.Context, text string, d domain.KnowledgeDomain, topK int) string
}
