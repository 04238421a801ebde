// Package cli provides the agora command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var verbose bool

// Services wired by main. Commands report "not configured" when the one
// they need is nil.
var (
	ingestService    driving.IngestService
	retrievalService driving.RetrievalService
	memoryService    driving.MemoryService
	validatorService driving.ResponseValidator
	planningService  driving.PlanningService
	turnService      driving.TurnService
	toolRegistry     driving.ToolRegistry
	settingsService  driving.SettingsService

	// pdfRoot is the folder watched by ingest --watch.
	pdfRoot string
)

// Services holds the driving ports the commands use.
type Services struct {
	Ingest    driving.IngestService
	Retrieval driving.RetrievalService
	Memory    driving.MemoryService
	Validator driving.ResponseValidator
	Planning  driving.PlanningService
	Turn      driving.TurnService
	Tools     driving.ToolRegistry
	Settings  driving.SettingsService

	PDFRoot string
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	retrievalService = s.Retrieval
	memoryService = s.Memory
	validatorService = s.Validator
	planningService = s.Planning
	turnService = s.Turn
	toolRegistry = s.Tools
	settingsService = s.Settings
	pdfRoot = s.PDFRoot
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Evidence-grounded knowledge core for multi-agent symposia",
	Long: `agora ingests domain-partitioned PDF corpora into vector collections,
answers knowledge base queries, keeps per-domain agent memory and validates
that agent utterances are grounded in retrieved evidence.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// commandContext returns the command's context, or a background context
// when the command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
