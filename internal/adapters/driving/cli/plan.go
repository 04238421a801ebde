package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

// agentFlags are shared by the commands that act as one agent.
type agentFlags struct {
	agent     string
	expertise string
	domain    string
	symposium string
	round     int
	agenda    string
	questions []string
}

func (f *agentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.agent, "agent", "", "agent name (required)")
	cmd.Flags().StringVar(&f.expertise, "expertise", "", "agent expertise")
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "agent knowledge domain (required)")
	cmd.Flags().StringVar(&f.symposium, "symposium", "", "symposium id (default: a new symposium)")
	cmd.Flags().IntVar(&f.round, "round", 1, "round number")
	cmd.Flags().StringVar(&f.agenda, "agenda", "", "round agenda")
	cmd.Flags().StringArrayVarP(&f.questions, "question", "q", nil, "question for the round (repeatable)")
}

func (f *agentFlags) session() (*domain.SymposiumSession, error) {
	if f.agent == "" {
		return nil, errors.New("--agent is required")
	}
	if f.domain == "" {
		return nil, errors.New("--domain is required")
	}
	d, err := domain.ParseDomain(f.domain)
	if err != nil {
		return nil, err
	}
	if d == domain.DomainAll {
		return nil, fmt.Errorf("%w: an agent belongs to one domain", domain.ErrInvalidDomain)
	}
	id := f.symposium
	if id == "" {
		id = domain.NewSymposiumID(time.Now())
	}
	return domain.NewSymposiumSession(id, d), nil
}

var planFlags agentFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan an agent's contribution to a round",
	Long: `Asks the LLM for a structured contribution plan: main points, evidence to
look up, analogies to test and questions for the other agents.

Example:
  agora plan --agent "Dr. Chen" --expertise "EDL theory" --domain electrochemistry \
    --round 2 --agenda "Ion selectivity" -q "How does pore size matter?"`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planFlags.register(planCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	if planningService == nil {
		return errors.New("planning service not configured")
	}
	s, err := planFlags.session()
	if err != nil {
		return err
	}

	result := planningService.Plan(commandContext(cmd), s, driving.PlanRequest{
		Agent:     planFlags.agent,
		Expertise: planFlags.expertise,
		Round:     planFlags.round,
		Agenda:    planFlags.agenda,
		Questions: planFlags.questions,
	})
	if !result.IsOk() {
		cmd.Println(mutedStyle.Render("Plan built by fallback: " + result.Reason))
	}

	data, err := json.MarshalIndent(result.Value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
