package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agora/internal/core/domain"
)

var (
	memoryDomain        string
	memorySymposium     string
	memoryTopK          int
	memoryTiers         []string
	memoryImportance    float64
	memoryTier          string
	memoryRound         int
	consolidateRound    int
	memoryNoLLM         bool
	memoryMinImportance float64
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage agent memory",
	Long: `Agent memory is kept per domain in three tiers: short_term (this process
only), working (the current symposium) and long_term (carried across symposia).`,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory statistics for a domain",
	Args:  cobra.NoArgs,
	RunE:  runMemoryStats,
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Recall memories relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryRecall,
}

var memoryRememberCmd = &cobra.Command{
	Use:   "remember [text]",
	Short: "Store an insight",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryRemember,
}

var memoryConsolidateCmd = &cobra.Command{
	Use:   "consolidate [round summary]",
	Short: "Extract insights from a round summary into working memory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryConsolidate,
}

var memoryPromoteCmd = &cobra.Command{
	Use:   "promote [id...]",
	Short: "Promote working memories to long-term",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryPromote,
}

func init() {
	memoryCmd.PersistentFlags().StringVarP(&memoryDomain, "domain", "d", "", "knowledge domain (required)")
	memoryCmd.PersistentFlags().StringVar(&memorySymposium, "symposium", "", "symposium id (default: a new symposium)")

	memoryRecallCmd.Flags().IntVarP(&memoryTopK, "top-k", "k", 0, "number of memories (default from settings)")
	memoryRecallCmd.Flags().StringSliceVar(&memoryTiers, "tier", nil, "restrict to tiers (default working,long_term)")
	memoryRecallCmd.Flags().Float64Var(&memoryMinImportance, "min-importance", 0, "drop memories below this importance")

	memoryRememberCmd.Flags().Float64Var(&memoryImportance, "importance", domain.ImportanceMedium, "importance in [0,1]")
	memoryRememberCmd.Flags().StringVar(&memoryTier, "tier", string(domain.TierWorking), "memory tier")
	memoryRememberCmd.Flags().IntVar(&memoryRound, "round", domain.NoRound, "round number")

	memoryConsolidateCmd.Flags().IntVar(&consolidateRound, "round", 1, "round number")
	memoryConsolidateCmd.Flags().BoolVar(&memoryNoLLM, "no-llm", false, "store the summary without LLM insight extraction")

	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryRecallCmd)
	memoryCmd.AddCommand(memoryRememberCmd)
	memoryCmd.AddCommand(memoryConsolidateCmd)
	memoryCmd.AddCommand(memoryPromoteCmd)
	rootCmd.AddCommand(memoryCmd)
}

// memorySession builds the session the memory commands act in.
func memorySession() (*domain.SymposiumSession, error) {
	if memoryService == nil {
		return nil, errors.New("memory service not configured")
	}
	if memoryDomain == "" {
		return nil, errors.New("--domain is required")
	}
	d, err := domain.ParseDomain(memoryDomain)
	if err != nil {
		return nil, err
	}
	if d == domain.DomainAll {
		return nil, fmt.Errorf("%w: memory is kept per domain", domain.ErrInvalidDomain)
	}
	id := memorySymposium
	if id == "" {
		id = domain.NewSymposiumID(time.Now())
	}
	return domain.NewSymposiumSession(id, d), nil
}

func runMemoryStats(cmd *cobra.Command, _ []string) error {
	s, err := memorySession()
	if err != nil {
		return err
	}
	stats, err := memoryService.Statistics(commandContext(cmd), s)
	if err != nil {
		return fmt.Errorf("failed to read memory statistics: %w", err)
	}

	rows := [][]string{}
	for _, tier := range domain.AllTiers() {
		rows = append(rows, []string{tier.String(), strconv.Itoa(stats.ByTier[tier])})
	}
	cmd.Println(headingStyle.Render(fmt.Sprintf("Memory for %s", s.Domain)))
	cmd.Println(renderTable([]string{"Tier", "Records"}, rows))
	cmd.Printf("Total: %d\n", stats.Total)
	cmd.Printf("Importance: high %d, medium %d, low %d\n",
		stats.HighImportance, stats.MediumImportance, stats.LowImportance)
	if memorySymposium != "" {
		cmd.Printf("Symposium %s: %d\n", s.ID, stats.CurrentSymposiumCount)
	}
	return nil
}

func runMemoryRecall(cmd *cobra.Command, args []string) error {
	s, err := memorySession()
	if err != nil {
		return err
	}
	opts := domain.RecallOptions{TopK: memoryTopK, MinImportance: memoryMinImportance}
	for _, name := range memoryTiers {
		tier := domain.MemoryTier(strings.TrimSpace(name))
		if !tier.IsValid() {
			return fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, name)
		}
		opts.Tiers = append(opts.Tiers, tier)
	}

	query := strings.Join(args, " ")
	records, err := memoryService.Recall(commandContext(cmd), s, query, opts)
	if err != nil {
		return fmt.Errorf("recall failed: %w", err)
	}
	if len(records) == 0 {
		cmd.Printf("No relevant memories found for: %s\n", query)
		return nil
	}
	for i, r := range records {
		cmd.Printf("[%d] %s  importance %.2f  score %.3f\n", i+1, r.Tier, r.Importance, r.Score)
		cmd.Println(mutedStyle.Render(fmt.Sprintf("    id %s, symposium %s", r.ID, r.SymposiumID)))
		cmd.Printf("    %s\n", r.Text)
	}
	return nil
}

func runMemoryRemember(cmd *cobra.Command, args []string) error {
	s, err := memorySession()
	if err != nil {
		return err
	}
	tier := domain.MemoryTier(memoryTier)
	if !tier.IsValid() {
		return fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, memoryTier)
	}

	id, err := memoryService.Remember(commandContext(cmd), s, strings.Join(args, " "),
		map[string]any{domain.MetaSource: "cli"}, memoryImportance, tier, memoryRound)
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	if id == "" {
		cmd.Println("Not stored: the text is too short or the tier is disabled.")
		return nil
	}
	cmd.Printf("Stored %s memory %s\n", tier, id)
	return nil
}

func runMemoryConsolidate(cmd *cobra.Command, args []string) error {
	s, err := memorySession()
	if err != nil {
		return err
	}
	ids, err := memoryService.ConsolidateRound(commandContext(cmd), s, strings.Join(args, " "), consolidateRound, !memoryNoLLM)
	if err != nil {
		return fmt.Errorf("consolidation failed: %w", err)
	}
	cmd.Printf("Stored %d insights from round %d\n", len(ids), consolidateRound)
	for _, id := range ids {
		cmd.Printf("  %s\n", id)
	}
	return nil
}

func runMemoryPromote(cmd *cobra.Command, args []string) error {
	s, err := memorySession()
	if err != nil {
		return err
	}
	n, err := memoryService.PromoteToLongTerm(commandContext(cmd), s, args)
	if err != nil {
		return fmt.Errorf("promotion failed: %w", err)
	}
	cmd.Printf("Promoted %d of %d memories to long_term\n", n, len(args))
	return nil
}
