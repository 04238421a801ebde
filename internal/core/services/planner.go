package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure PlanningService implements the interface.
var _ driving.PlanningService = (*PlanningService)(nil)

// Ensure PlanningService can take custom prompts.
var _ driven.PromptStoreAware = (*PlanningService)(nil)

const (
	planningTemperature = 0.3
	planningMaxTokens   = 800
	noPreviousInsights  = "None yet."

	maxPlanPoints    = 4
	maxPlanEvidence  = 5
	maxPlanQuestions = 3

	planRule = "================================================================================"
)

var (
	planBullet       = regexp.MustCompile(`^[\d\-\*•]`)
	planBulletPrefix = regexp.MustCompile(`^[\d\-\*•\.\)]+\s*`)
)

// PlanningService asks the LLM how an agent intends to contribute to a
// round, before the agent speaks.
type PlanningService struct {
	llm     driven.LLMService
	memory  driving.MemoryService
	prompts driven.PromptStore
}

// NewPlanningService creates a planner. The memory service is optional and
// supplies previous insights to the planning prompt.
func NewPlanningService(llm driven.LLMService, memory driving.MemoryService) *PlanningService {
	return &PlanningService{llm: llm, memory: memory}
}

// SetPromptStore sets the prompt store for the planning prompt.
func (p *PlanningService) SetPromptStore(store driven.PromptStore) {
	p.prompts = store
}

// Plan produces and stores the agent's plan for the round. JSON answers
// are Ok; prose answers are mined for bulleted sections; a failed call
// yields the default plan.
func (p *PlanningService) Plan(
	ctx context.Context,
	s *domain.SymposiumSession,
	req driving.PlanRequest,
) domain.ParseResult[domain.ContributionPlan] {
	result := p.plan(ctx, s, req)
	if s != nil {
		s.SetPlan(req.Agent, req.Round, result.Value)
	}
	if result.IsOk() {
		logger.Info("Plan created for %s: %d points, %d queries",
			req.Agent, len(result.Value.MainPoints), len(result.Value.EvidenceNeeded))
	} else {
		logger.Warn("Plan for %s fell back: %s", req.Agent, result.Reason)
	}
	return result
}

func (p *PlanningService) plan(
	ctx context.Context,
	s *domain.SymposiumSession,
	req driving.PlanRequest,
) domain.ParseResult[domain.ContributionPlan] {
	if p.llm == nil {
		return domain.Fallback(domain.DefaultPlan(req.Questions), domain.ErrLLMUnavailable.Error())
	}

	insights := noPreviousInsights
	if p.memory != nil && s != nil {
		memCtx, err := p.memory.ContextForRound(ctx, s, req.Agenda, req.Questions, req.Round)
		if err != nil {
			logger.Debug("No memory context for planning: %v", err)
		} else if strings.TrimSpace(memCtx) != "" {
			insights = memCtx
		}
	}

	questions := make([]string, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = "- " + q
	}
	prompt, err := renderPrompt(p.prompts, driven.PromptContributionPlan,
		req.Round, req.Agenda, strings.Join(questions, "\n"), insights)
	if err != nil {
		return domain.Fallback(domain.DefaultPlan(req.Questions), err.Error())
	}

	expertise := req.Expertise
	if expertise == "" && s != nil {
		expertise = s.Domain.String()
	}
	resp, err := p.llm.Complete(ctx, driven.CompletionRequest{
		System:      fmt.Sprintf("You are a strategic planner for a %s expert in a scientific symposium.", expertise),
		Messages:    []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}},
		MaxTokens:   planningMaxTokens,
		Temperature: planningTemperature,
	})
	if err != nil {
		return domain.Fallback(domain.DefaultPlan(req.Questions), fmt.Sprintf("planning failed: %v", err))
	}
	return ParsePlan(resp.Text)
}

// ParsePlan reads a JSON plan, fenced or bare. Anything else is mined for
// numbered or bulleted items under main point, evidence and question
// headings.
func ParsePlan(text string) domain.ParseResult[domain.ContributionPlan] {
	var plan domain.ContributionPlan
	if err := decodeModelJSON(text, &plan); err == nil {
		return domain.Ok(plan.Normalise())
	}
	return domain.Fallback(planFromText(text), "plan was not JSON")
}

func planFromText(text string) domain.ContributionPlan {
	var points, evidence, questions []string
	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "main point"):
			section = "points"
		case strings.Contains(lower, "evidence") || strings.Contains(lower, "quer"):
			section = "evidence"
		case strings.Contains(lower, "question"):
			section = "questions"
		}
		if !planBullet.MatchString(line) {
			continue
		}
		item := planBulletPrefix.ReplaceAllString(line, "")
		if item == "" {
			continue
		}
		switch section {
		case "points":
			points = append(points, item)
		case "evidence":
			evidence = append(evidence, item)
		case "questions":
			questions = append(questions, item)
		}
	}
	return domain.ContributionPlan{
		MainPoints:         limit(points, maxPlanPoints),
		EvidenceNeeded:     limit(evidence, maxPlanEvidence),
		QuestionsForOthers: limit(questions, maxPlanQuestions),
		EstimatedToolCalls: len(evidence),
		Priority:           domain.PriorityMedium,
	}
}

// FormatPlan renders a plan as the block shown to the agent during its turn.
func FormatPlan(plan domain.ContributionPlan) string {
	var b strings.Builder
	b.WriteString("\n" + planRule + "\nYOUR CONTRIBUTION PLAN FOR THIS ROUND:\n" + planRule + "\n")
	for _, sec := range []struct {
		title string
		items []string
	}{
		{"Main Points to Make", plan.MainPoints},
		{"Evidence to Gather", plan.EvidenceNeeded},
		{"Analogies to Explore", plan.AnalogiesToTest},
		{"Questions for Others", plan.QuestionsForOthers},
		{"Key Concepts to Introduce", plan.KeyConcepts},
	} {
		b.WriteString("\n" + sec.title + ":\n")
		for _, item := range sec.items {
			b.WriteString("  • " + item + "\n")
		}
	}
	b.WriteString("\n" + planRule + "\n")
	b.WriteString("Execute this plan by using your query_knowledge_base tool to gather evidence,\n")
	b.WriteString("then presenting your arguments clearly and concisely.\n")
	b.WriteString(planRule + "\n")
	return b.String()
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
