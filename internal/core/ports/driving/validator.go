package driving

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// ResponseValidator enforces grounding of substantive utterances.
type ResponseValidator interface {
	// Classify labels a response simple or substantive.
	Classify(text string) domain.ResponseClass

	// Validate checks a response against the tool calls made while drafting it.
	Validate(text string, toolCalls []string) domain.ValidationOutcome

	// ExtractClaims returns up to five search queries built from claim sentences.
	ExtractClaims(text string) []string

	// ForceRetrieval queries the knowledge base for the first claim, or
	// fallback when no claim can be extracted.
	ForceRetrieval(ctx context.Context, text, fallback string, d domain.KnowledgeDomain) string

	// Stats returns counters since the last reset.
	Stats() domain.ValidatorStats

	// ResetStats zeroes the counters.
	ResetStats()
}
