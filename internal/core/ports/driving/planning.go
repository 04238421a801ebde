package driving

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// PlanRequest identifies the agent and round being planned.
type PlanRequest struct {
	Agent     string
	Expertise string
	Round     int
	Agenda    string
	Questions []string
}

// PlanningService produces contribution plans.
type PlanningService interface {
	// Plan asks the LLM for a plan and stores it on the session. The result
	// is Ok when the response parsed as JSON, otherwise a Fallback.
	Plan(ctx context.Context, s *domain.SymposiumSession, req PlanRequest) domain.ParseResult[domain.ContributionPlan]
}
