package domain

import "fmt"

// Plan priorities.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// ContributionPlan is an agent's plan for one round of the symposium.
// It is created once per (agent, round) and read-only during the round.
type ContributionPlan struct {
	MainPoints         []string `json:"main_points"`
	EvidenceNeeded     []string `json:"evidence_needed"`
	AnalogiesToTest    []string `json:"analogies_to_test"`
	QuestionsForOthers []string `json:"questions_for_others"`
	KeyConcepts        []string `json:"key_concepts"`
	EstimatedToolCalls int      `json:"estimated_tool_calls"`
	Priority           string   `json:"priority"`
}

// DefaultPlan is the minimal plan used when planning fails outright.
func DefaultPlan(questions []string) ContributionPlan {
	points := make([]string, 0, 2)
	for i, q := range questions {
		if i == 2 {
			break
		}
		points = append(points, fmt.Sprintf("Address: %s", q))
	}
	return ContributionPlan{
		MainPoints:         points,
		EvidenceNeeded:     []string{"relevant findings in my field"},
		EstimatedToolCalls: 1,
		Priority:           PriorityMedium,
	}
}

// Normalise fills zero-valued fields with their defaults.
func (p ContributionPlan) Normalise() ContributionPlan {
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	if p.EstimatedToolCalls <= 0 {
		p.EstimatedToolCalls = len(p.EvidenceNeeded)
	}
	return p
}
