package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

var planRequest = driving.PlanRequest{
	Agent:     "Dr. Volta",
	Round:     1,
	Agenda:    "Limits of ion selectivity",
	Questions: []string{"What sets the cutoff?", "Can pores beat channels?", "Which metric matters?"},
}

func newTestPlanner(llm *mockLLM, memory driving.MemoryService) *PlanningService {
	var p *PlanningService
	if llm == nil {
		p = NewPlanningService(nil, memory)
	} else {
		p = NewPlanningService(llm, memory)
	}
	p.SetPromptStore(newMockPromptStore())
	return p
}

func TestPlanningService_Plan_JSON(t *testing.T) {
	llm := newMockLLM(textReply("```json\n" + `{
  "main_points": ["EDL overlap sets selectivity"],
  "evidence_needed": ["conductance vs concentration", "Debye length in pores"],
  "questions_for_others": ["Do channels use the same trick?"],
  "key_concepts": ["Dukhin number"]
}` + "\n```"))
	p := newTestPlanner(llm, nil)
	s := domain.NewSymposiumSession("sym", domain.DomainElectrochemistry)

	res := p.Plan(context.Background(), s, planRequest)
	require.True(t, res.IsOk())
	assert.Equal(t, []string{"EDL overlap sets selectivity"}, res.Value.MainPoints)
	assert.Equal(t, 2, res.Value.EstimatedToolCalls)
	assert.Equal(t, domain.PriorityMedium, res.Value.Priority)

	stored, ok := s.Plan("Dr. Volta", 1)
	require.True(t, ok)
	assert.Equal(t, res.Value, stored)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "You are a strategic planner for a electrochemistry expert in a scientific symposium.", req.System)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 800, req.MaxTokens)
	assert.Equal(t, "Round 1\nAgenda: Limits of ion selectivity\nQuestions:\n"+
		"- What sets the cutoff?\n- Can pores beat channels?\n- Which metric matters?\n"+
		"Previous insights:\nNone yet.", req.Messages[0].Content)
}

func TestPlanningService_Plan_UsesMemoryAndExpertise(t *testing.T) {
	llm := newMockLLM(textReply(`{"main_points": ["x"]}`))
	p := newTestPlanner(llm, &mockMemory{context: "MEMORY BLOCK"})
	s := domain.NewSymposiumSession("sym", domain.DomainBiology)

	req := planRequest
	req.Expertise = "ion channel biophysics"
	res := p.Plan(context.Background(), s, req)
	require.True(t, res.IsOk())

	sent := llm.requests[0]
	assert.Contains(t, sent.System, "for a ion channel biophysics expert")
	assert.True(t, strings.HasSuffix(sent.Messages[0].Content, "Previous insights:\nMEMORY BLOCK"))
}

func TestPlanningService_Plan_Fallbacks(t *testing.T) {
	failing := newMockLLM()
	failing.err = errors.New("timeout")

	tests := []struct {
		name       string
		llm        *mockLLM
		wantReason string
	}{
		{name: "no llm", llm: nil, wantReason: domain.ErrLLMUnavailable.Error()},
		{name: "llm error", llm: failing, wantReason: "planning failed: timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlanner(tt.llm, nil)
			s := domain.NewSymposiumSession("sym", domain.DomainBiology)

			res := p.Plan(context.Background(), s, planRequest)
			assert.False(t, res.IsOk())
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, domain.DefaultPlan(planRequest.Questions), res.Value)
			assert.Equal(t, []string{"Address: What sets the cutoff?", "Address: Can pores beat channels?"}, res.Value.MainPoints)

			_, ok := s.Plan("Dr. Volta", 1)
			assert.True(t, ok)
		})
	}
}

func TestParsePlan_Prose(t *testing.T) {
	res := ParsePlan(`Main Points:
1. Double layers overlap
2) Selectivity follows
Evidence needed:
- conductance data
Questions for others:
* How do biological channels compare?
Some closing remark.`)

	assert.False(t, res.IsOk())
	assert.Equal(t, "plan was not JSON", res.Reason)
	want := domain.ContributionPlan{
		MainPoints:         []string{"Double layers overlap", "Selectivity follows"},
		EvidenceNeeded:     []string{"conductance data"},
		QuestionsForOthers: []string{"How do biological channels compare?"},
		EstimatedToolCalls: 1,
		Priority:           domain.PriorityMedium,
	}
	if diff := cmp.Diff(want, res.Value); diff != "" {
		t.Errorf("ParsePlan() mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePlan_LimitsSections(t *testing.T) {
	var b strings.Builder
	b.WriteString("Main points\n")
	for i := 0; i < 6; i++ {
		b.WriteString("- point\n")
	}
	res := ParsePlan(b.String())
	assert.Len(t, res.Value.MainPoints, 4)
}

func TestFormatPlan(t *testing.T) {
	rule := strings.Repeat("=", 80)
	want := "\n" + rule + "\nYOUR CONTRIBUTION PLAN FOR THIS ROUND:\n" + rule + "\n" +
		"\nMain Points to Make:\n  • overlap matters\n" +
		"\nEvidence to Gather:\n  • Debye length\n" +
		"\nAnalogies to Explore:\n" +
		"\nQuestions for Others:\n" +
		"\nKey Concepts to Introduce:\n" +
		"\n" + rule + "\n" +
		"Execute this plan by using your query_knowledge_base tool to gather evidence,\n" +
		"then presenting your arguments clearly and concisely.\n" +
		rule + "\n"

	got := FormatPlan(domain.ContributionPlan{
		MainPoints:     []string{"overlap matters"},
		EvidenceNeeded: []string{"Debye length"},
	})
	assert.Equal(t, want, got)
}
