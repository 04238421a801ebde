package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/agora/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, memory presets and other options.

Settings are stored in ~/.agora/config.toml ($AGORA_HOME overrides the
directory). OPENAI_API_KEY and ANTHROPIC_API_KEY from the environment or a
.env file take precedence over stored keys.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used for paper chunks and agent memory.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used for agent turns, planning and insight extraction.`,
	RunE:  runSettingsLLM,
}

var settingsVisionCmd = &cobra.Command{
	Use:   "vision",
	Short: "Configure vision provider",
	Long:  `Configure the vision model used for figure analysis, panel detection and equation detection.`,
	RunE:  runSettingsVision,
}

var settingsPresetCmd = &cobra.Command{
	Use:   "preset [default|cost|quality]",
	Short: "Apply a memory preset",
	Long: `Replace the memory settings with a bundled preset:
  default - all tiers, 3 memories per recall
  cost    - no long-term tier, 2 memories per recall, no importance scoring
  quality - 5 memories per recall, lower relevance threshold`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.MemoryPresetDefault), string(domain.MemoryPresetCost), string(domain.MemoryPresetQuality)},
	RunE:      runSettingsPreset,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsVisionCmd)
	settingsCmd.AddCommand(settingsPresetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	showProvider(cmd, "Embedding", settings.Embedding.ProviderSettings)
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	cmd.Printf("  Batch size: %d\n", settings.Embedding.BatchSize)
	cmd.Println()
	showProvider(cmd, "LLM", settings.LLM.ProviderSettings)
	cmd.Println()
	showProvider(cmd, "Vision", settings.Vision.ProviderSettings)
	cmd.Println()

	cmd.Println("[Paths]")
	cmd.Printf("  PDF root: %s\n", settings.Paths.PDFRoot)
	cmd.Printf("  Data: %s\n", settings.Paths.DataDir)
	cmd.Printf("  Figures: %s\n", settings.Paths.FiguresDir)
	cmd.Printf("  Results: %s\n", settings.Paths.ResultsDir)
	cmd.Println()

	cmd.Println("[Ingestion]")
	cmd.Printf("  Chunk size: %d (overlap %d)\n", settings.Chunking.Size, settings.Chunking.Overlap)
	cmd.Printf("  Multimodal: %t\n", settings.Extraction.Multimodal)
	cmd.Printf("  Equation pages: %d\n", settings.Extraction.EquationPages)
	cmd.Printf("  Citation registry: %s\n", settings.Citation.RegistryURL)
	cmd.Println()

	mem := settings.Memory
	cmd.Println("[Memory]")
	cmd.Printf("  Tiers: short_term=%t working=%t long_term=%t\n", mem.EnableShortTerm, mem.EnableWorking, mem.EnableLongTerm)
	cmd.Printf("  Max per recall: %d\n", mem.MaxPerRecall)
	cmd.Printf("  Relevance threshold: %.2f\n", mem.RelevanceThreshold)
	cmd.Printf("  Importance scoring: %t (decay %.2f)\n", mem.UseImportanceScoring, mem.ImportanceDecayRate)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Top k: %d\n", settings.Retrieval.TopK)
	cmd.Printf("  Validator retries: %d\n", settings.Validator.MaxRetries)
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'agora settings embedding' or 'agora settings llm' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func showProvider(cmd *cobra.Command, name string, p domain.ProviderSettings) {
	cmd.Printf("[%s]\n", name)
	if p.Provider == "" {
		cmd.Println("  Provider: (not set)")
		return
	}
	cmd.Printf("  Provider: %s\n", p.Provider.Description())
	cmd.Printf("  Model: %s\n", p.Model)
	if p.Provider == domain.AIProviderOllama && p.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", p.BaseURL)
	}
	if p.Provider.RequiresAPIKey() {
		if p.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(p.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !p.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), providerStep{
		name:      "Embedding",
		providers: domain.AllEmbeddingProviders(),
		defaults:  domain.DefaultEmbeddingModels(),
		set:       settingsService.SetEmbeddingProvider,
		validate:  settingsService.ValidateEmbeddingConfig,
	})
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), providerStep{
		name:      "LLM",
		providers: domain.AllLLMProviders(),
		defaults:  domain.DefaultLLMModels(),
		set:       settingsService.SetLLMProvider,
		validate:  settingsService.ValidateLLMConfig,
	})
}

func runSettingsVision(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), providerStep{
		name:      "Vision",
		providers: domain.AllLLMProviders(),
		defaults:  domain.DefaultVisionModels(),
		set:       settingsService.SetVisionProvider,
		validate:  settingsService.ValidateVisionConfig,
	})
}

func runSettingsPreset(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	preset := domain.MemoryPreset(strings.ToLower(args[0]))
	switch preset {
	case domain.MemoryPresetDefault, domain.MemoryPresetCost, domain.MemoryPresetQuality:
	default:
		return fmt.Errorf("unknown preset %q (use default, cost or quality)", args[0])
	}
	if err := settingsService.ApplyMemoryPreset(preset); err != nil {
		return fmt.Errorf("failed to apply preset: %w", err)
	}
	cmd.Printf("Memory preset applied: %s\n", preset)
	return nil
}

// providerStep describes one provider configuration flow.
type providerStep struct {
	name      string
	providers []domain.AIProvider
	defaults  map[domain.AIProvider]string
	set       func(provider domain.AIProvider, model, apiKey string) error
	validate  func() error
}

func configureProvider(cmd *cobra.Command, reader *bufio.Reader, step providerStep) error {
	cmd.Printf("Select %s Provider\n", step.name)
	for i, p := range step.providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(step.providers), 1)
	selectedProvider := step.providers[idx-1]

	// Get model
	defaultModel := step.defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := step.set(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", step.name, err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := step.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", step.name, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n\n", step.name, selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when stdin is a terminal, and falls
// back to a plain line otherwise.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
