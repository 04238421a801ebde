package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
)

// executeCommand runs the root command with fresh flags and services and
// returns everything written to stdout and stderr.
func executeCommand(t *testing.T, services Services, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	SetServices(services)
	t.Cleanup(func() {
		SetServices(Services{})
		resetFlags(rootCmd)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	summary *domain.IngestSummary
	stats   []domain.CollectionStats
	err     error
	opts    []domain.IngestOptions
}

func (m *mockIngestService) Ingest(_ context.Context, opts domain.IngestOptions) (*domain.IngestSummary, error) {
	m.opts = append(m.opts, opts)
	return m.summary, m.err
}

func (m *mockIngestService) IngestDocument(_ context.Context, _ string, _ domain.KnowledgeDomain, _ bool) (int, error) {
	return 0, m.err
}

func (m *mockIngestService) AlreadyIngested(_ context.Context, _ domain.KnowledgeDomain) (map[string]struct{}, error) {
	return nil, m.err
}

func (m *mockIngestService) Stats(_ context.Context) ([]domain.CollectionStats, error) {
	return m.stats, m.err
}

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results []domain.RetrievedChunk
	err     error
	text    string
	domain  domain.KnowledgeDomain
	topK    int
}

func (m *mockRetrievalService) Query(_ context.Context, text string, d domain.KnowledgeDomain, topK int) ([]domain.RetrievedChunk, error) {
	m.text = text
	m.domain = d
	m.topK = topK
	return m.results, m.err
}

func (m *mockRetrievalService) FormatResults(results []domain.RetrievedChunk) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[Source %d] %s\n", i+1, r.Text)
	}
	return b.String()
}

func (m *mockRetrievalService) QueryForAgent(_ context.Context, _ string, _ domain.KnowledgeDomain, _ int) string {
	return ""
}

func (m *mockRetrievalService) QueryAsTool(_ context.Context, text string, _ domain.KnowledgeDomain, _ int) string {
	return "Knowledge Base Results for: " + text
}

// mockMemoryService is a mock implementation of driving.MemoryService.
type mockMemoryService struct {
	stats    *domain.MemoryStatistics
	records  []domain.MemoryRecord
	id       string
	ids      []string
	promoted int
	err      error

	sessions   []*domain.SymposiumSession
	recallOpts domain.RecallOptions
	tier       domain.MemoryTier
	importance float64
	round      int
	useLLM     bool
	promoteIDs []string
}

func (m *mockMemoryService) Remember(_ context.Context, s *domain.SymposiumSession, _ string, _ map[string]any,
	importance float64, tier domain.MemoryTier, round int) (string, error) {
	m.sessions = append(m.sessions, s)
	m.importance = importance
	m.tier = tier
	m.round = round
	return m.id, m.err
}

func (m *mockMemoryService) Recall(_ context.Context, s *domain.SymposiumSession, _ string, opts domain.RecallOptions) ([]domain.MemoryRecord, error) {
	m.sessions = append(m.sessions, s)
	m.recallOpts = opts
	return m.records, m.err
}

func (m *mockMemoryService) ConsolidateRound(_ context.Context, s *domain.SymposiumSession, _ string, round int, useLLM bool) ([]string, error) {
	m.sessions = append(m.sessions, s)
	m.round = round
	m.useLLM = useLLM
	return m.ids, m.err
}

func (m *mockMemoryService) PromoteToLongTerm(_ context.Context, s *domain.SymposiumSession, ids []string) (int, error) {
	m.sessions = append(m.sessions, s)
	m.promoteIDs = ids
	return m.promoted, m.err
}

func (m *mockMemoryService) Statistics(_ context.Context, s *domain.SymposiumSession) (*domain.MemoryStatistics, error) {
	m.sessions = append(m.sessions, s)
	return m.stats, m.err
}

func (m *mockMemoryService) ContextForRound(_ context.Context, _ *domain.SymposiumSession, _ string, _ []string, _ int) (string, error) {
	return "", m.err
}

func (m *mockMemoryService) ClearShortTerm(_ *domain.SymposiumSession) {}

// mockValidator is a mock implementation of driving.ResponseValidator.
type mockValidator struct {
	outcome   domain.ValidationOutcome
	forced    string
	toolCalls []string
	fallback  string
	domain    domain.KnowledgeDomain
}

func (m *mockValidator) Classify(_ string) domain.ResponseClass {
	return m.outcome.Class
}

func (m *mockValidator) Validate(_ string, toolCalls []string) domain.ValidationOutcome {
	m.toolCalls = toolCalls
	return m.outcome
}

func (m *mockValidator) ExtractClaims(_ string) []string {
	return m.outcome.Claims
}

func (m *mockValidator) ForceRetrieval(_ context.Context, _, fallback string, d domain.KnowledgeDomain) string {
	m.fallback = fallback
	m.domain = d
	return m.forced
}

func (m *mockValidator) Stats() domain.ValidatorStats {
	return domain.ValidatorStats{}
}

func (m *mockValidator) ResetStats() {}

// mockPlanningService is a mock implementation of driving.PlanningService.
type mockPlanningService struct {
	result  domain.ParseResult[domain.ContributionPlan]
	request driving.PlanRequest
	session *domain.SymposiumSession
}

func (m *mockPlanningService) Plan(_ context.Context, s *domain.SymposiumSession, req driving.PlanRequest) domain.ParseResult[domain.ContributionPlan] {
	m.session = s
	m.request = req
	return m.result
}

// mockTurnService is a mock implementation of driving.TurnService.
type mockTurnService struct {
	result  *driving.TurnResult
	err     error
	request driving.TurnRequest
}

func (m *mockTurnService) Respond(_ context.Context, _ *domain.SymposiumSession, req driving.TurnRequest) (*driving.TurnResult, error) {
	m.request = req
	return m.result, m.err
}

// mockToolRegistry is a mock implementation of driving.ToolRegistry.
type mockToolRegistry struct{}

func (m *mockToolRegistry) Dispatch(_ context.Context, _ *domain.SymposiumSession, call domain.ToolCall) domain.ToolResult {
	return domain.ToolResult{CallID: call.ID}
}

func (m *mockToolRegistry) Kinds() []domain.ToolKind {
	return domain.AllToolKinds()
}

func (m *mockToolRegistry) Specs(_ domain.KnowledgeDomain) []driven.ToolSpec {
	return nil
}

func (m *mockToolRegistry) Usage() domain.ToolUsage {
	return domain.ToolUsage{}
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error

	provider domain.AIProvider
	model    string
	apiKey   string
	preset   domain.MemoryPreset
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) record(provider domain.AIProvider, model, apiKey string) error {
	m.provider = provider
	m.model = model
	m.apiKey = apiKey
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	return m.record(provider, model, apiKey)
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	return m.record(provider, model, apiKey)
}

func (m *mockSettingsService) SetVisionProvider(provider domain.AIProvider, model, apiKey string) error {
	return m.record(provider, model, apiKey)
}

func (m *mockSettingsService) ApplyMemoryPreset(preset domain.MemoryPreset) error {
	m.preset = preset
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.pingErr
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return m.pingErr
}

func (m *mockSettingsService) ValidateVisionConfig() error {
	return m.pingErr
}
