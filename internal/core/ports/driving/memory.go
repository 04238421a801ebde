package driving

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// MemoryService is the per-domain agent memory. The session carries the
// symposium id, the domain and the in-process working-id list.
type MemoryService interface {
	// Remember stores an insight. It returns "" and no error when the text
	// is below the minimum length or the tier is disabled.
	Remember(ctx context.Context, s *domain.SymposiumSession, text string, meta map[string]any,
		importance float64, tier domain.MemoryTier, round int) (string, error)

	// Recall returns memories for the session's domain ranked by
	// importance-weighted similarity.
	Recall(ctx context.Context, s *domain.SymposiumSession, query string, opts domain.RecallOptions) ([]domain.MemoryRecord, error)

	// ConsolidateRound collapses a round's dialogue into working-tier insights.
	ConsolidateRound(ctx context.Context, s *domain.SymposiumSession, summary string, round int, useLLM bool) ([]string, error)

	// PromoteToLongTerm re-tags the given ids, or every tracked working id
	// when ids is empty, as long-term. Returns the number of records updated.
	PromoteToLongTerm(ctx context.Context, s *domain.SymposiumSession, ids []string) (int, error)

	// Statistics counts the records in the session's domain.
	Statistics(ctx context.Context, s *domain.SymposiumSession) (*domain.MemoryStatistics, error)

	// ContextForRound formats relevant memories for a round's prompt.
	ContextForRound(ctx context.Context, s *domain.SymposiumSession, agenda string, questions []string, round int) (string, error)

	// ClearShortTerm empties the session's short-term buffer.
	ClearShortTerm(s *domain.SymposiumSession)
}
