package mcp

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// mockToolRegistry is a mock implementation of driving.ToolRegistry.
type mockToolRegistry struct {
	kinds    []domain.ToolKind
	result   domain.ToolResult
	calls    []domain.ToolCall
	sessions []*domain.SymposiumSession
	usage    domain.ToolUsage
}

func newMockToolRegistry() *mockToolRegistry {
	return &mockToolRegistry{kinds: domain.AllToolKinds()}
}

func (m *mockToolRegistry) Dispatch(_ context.Context, s *domain.SymposiumSession, call domain.ToolCall) domain.ToolResult {
	m.calls = append(m.calls, call)
	m.sessions = append(m.sessions, s)
	r := m.result
	r.CallID = call.ID
	return r
}

func (m *mockToolRegistry) Kinds() []domain.ToolKind {
	return m.kinds
}

func (m *mockToolRegistry) Specs(_ domain.KnowledgeDomain) []driven.ToolSpec {
	specs := make([]driven.ToolSpec, len(m.kinds))
	for i, k := range m.kinds {
		specs[i] = driven.ToolSpec{Name: k.String(), Description: "describes " + k.String()}
	}
	return specs
}

func (m *mockToolRegistry) Usage() domain.ToolUsage {
	return m.usage
}

// mockValidator is a mock implementation of driving.ResponseValidator.
type mockValidator struct {
	outcome   domain.ValidationOutcome
	text      string
	toolCalls []string
}

func (m *mockValidator) Classify(_ string) domain.ResponseClass {
	return m.outcome.Class
}

func (m *mockValidator) Validate(text string, toolCalls []string) domain.ValidationOutcome {
	m.text = text
	m.toolCalls = toolCalls
	return m.outcome
}

func (m *mockValidator) ExtractClaims(_ string) []string {
	return m.outcome.Claims
}

func (m *mockValidator) ForceRetrieval(_ context.Context, _, _ string, _ domain.KnowledgeDomain) string {
	return ""
}

func (m *mockValidator) Stats() domain.ValidatorStats {
	return domain.ValidatorStats{}
}

func (m *mockValidator) ResetStats() {}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	stats []domain.CollectionStats
	err   error
}

func (m *mockIngestService) Ingest(_ context.Context, _ domain.IngestOptions) (*domain.IngestSummary, error) {
	return &domain.IngestSummary{}, m.err
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

// mockMemoryService is a mock implementation of driving.MemoryService.
type mockMemoryService struct {
	stats   *domain.MemoryStatistics
	err     error
	domains []domain.KnowledgeDomain
}

func (m *mockMemoryService) Remember(_ context.Context, _ *domain.SymposiumSession, _ string, _ map[string]any,
	_ float64, _ domain.MemoryTier, _ int) (string, error) {
	return "", m.err
}

func (m *mockMemoryService) Recall(_ context.Context, _ *domain.SymposiumSession, _ string, _ domain.RecallOptions) ([]domain.MemoryRecord, error) {
	return nil, m.err
}

func (m *mockMemoryService) ConsolidateRound(_ context.Context, _ *domain.SymposiumSession, _ string, _ int, _ bool) ([]string, error) {
	return nil, m.err
}

func (m *mockMemoryService) PromoteToLongTerm(_ context.Context, _ *domain.SymposiumSession, _ []string) (int, error) {
	return 0, m.err
}

func (m *mockMemoryService) Statistics(_ context.Context, s *domain.SymposiumSession) (*domain.MemoryStatistics, error) {
	m.domains = append(m.domains, s.Domain)
	return m.stats, m.err
}

func (m *mockMemoryService) ContextForRound(_ context.Context, _ *domain.SymposiumSession, _ string, _ []string, _ int) (string, error) {
	return "", m.err
}

func (m *mockMemoryService) ClearShortTerm(_ *domain.SymposiumSession) {}
