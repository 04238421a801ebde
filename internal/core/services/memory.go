package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure MemoryService implements the interface.
var _ driving.MemoryService = (*MemoryService)(nil)

// Ensure MemoryService can take custom prompts.
var _ driven.PromptStoreAware = (*MemoryService)(nil)

const (
	extractionSystem      = "You are a scientific insight extractor."
	extractionTemperature = 0.3
	extractionMaxTokens   = 1000
	fallbackInsightLength = 500
	defaultImportance     = 0.5
	memoryContextRule     = "============================================================"
)

var (
	insightSplit   = regexp.MustCompile(`\*\*Insight \d+\*\*:`)
	insightContent = regexp.MustCompile(`(?s)^(.+?)\*\*Importance\*\*:`)
)

// extractedInsight is one insight pulled out of a round's dialogue.
type extractedInsight struct {
	text       string
	importance float64
	context    map[string]any
}

// MemoryService stores and recalls agent insights in per-domain memory
// collections. Session state (working ids, short-term buffer) lives on the
// SymposiumSession, so one service can serve many symposia.
type MemoryService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
	prompts  driven.PromptStore
	settings domain.MemorySettings

	now   func() time.Time
	newID func() string

	writeMu sync.Mutex
}

// NewMemoryService creates a memory service. The LLM is optional; without
// it rounds are consolidated as a single insight.
func NewMemoryService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	settings domain.MemorySettings,
) *MemoryService {
	return &MemoryService{
		store:    store,
		embedder: embedder,
		llm:      llm,
		settings: settings,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// SetPromptStore sets the prompt store for insight extraction.
func (m *MemoryService) SetPromptStore(store driven.PromptStore) {
	m.prompts = store
}

// Remember embeds and stores an insight. Texts shorter than the configured
// minimum and records for a disabled tier are dropped without error.
func (m *MemoryService) Remember(
	ctx context.Context,
	s *domain.SymposiumSession,
	text string,
	meta map[string]any,
	importance float64,
	tier domain.MemoryTier,
	round int,
) (string, error) {
	if s == nil {
		return "", fmt.Errorf("remember: %w: nil session", domain.ErrInvalidInput)
	}
	if !tier.IsValid() {
		return "", fmt.Errorf("remember: %w: tier %q", domain.ErrInvalidInput, tier)
	}
	if n := utf8.RuneCountInString(text); n < m.settings.MinInsightLength {
		logger.Debug("Insight too short to remember (%d chars)", n)
		return "", nil
	}
	if !m.tierEnabled(tier) {
		logger.Debug("Memory tier %s disabled, not remembering", tier)
		return "", nil
	}
	if m.embedder == nil {
		return "", domain.ErrEmbeddingUnavailable
	}

	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed insight: %w", err)
	}

	now := m.now()
	id := m.newID()
	metadata := make(map[string]any, len(meta)+6)
	for k, v := range meta {
		if isScalar(v) {
			metadata[k] = v
		}
	}
	metadata[domain.MetaSymposiumID] = s.ID
	metadata[domain.MetaDomain] = s.Domain.String()
	metadata[domain.MetaMemoryType] = tier.String()
	metadata[domain.MetaImportance] = importance
	metadata[domain.MetaTimestamp] = now.Format(time.RFC3339)
	metadata[domain.MetaRoundNumber] = round

	if err := m.ensureCollection(ctx, s.Domain); err != nil {
		return "", err
	}
	m.writeMu.Lock()
	err = m.store.Add(ctx, s.Domain.MemoryCollection(), []domain.Chunk{{
		ID:        id,
		Text:      text,
		Embedding: vec,
		Metadata:  metadata,
	}})
	m.writeMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("store insight: %w", err)
	}

	switch tier {
	case domain.TierWorking:
		s.TrackWorking(id)
	case domain.TierShortTerm:
		s.BufferShortTerm(domain.MemoryRecord{
			ID:          id,
			Text:        text,
			Domain:      s.Domain,
			SymposiumID: s.ID,
			Tier:        tier,
			Importance:  importance,
			RoundNumber: round,
			Timestamp:   now,
		})
	}
	logger.Debug("Remembered %s insight %s for %s", tier, id, s.Domain)
	return id, nil
}

// Recall over-fetches twice the requested count from the session's domain,
// then filters by tier, importance and relevance in process and ranks the
// survivors.
func (m *MemoryService) Recall(
	ctx context.Context,
	s *domain.SymposiumSession,
	query string,
	opts domain.RecallOptions,
) ([]domain.MemoryRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("recall: %w: nil session", domain.ErrInvalidInput)
	}
	if m.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = m.settings.MaxPerRecall
	}
	if topK <= 0 {
		return nil, nil
	}
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = []domain.MemoryTier{domain.TierWorking, domain.TierLongTerm}
	}

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed recall query: %w", err)
	}

	filter := driven.Filter{domain.MetaDomain: s.Domain.String()}
	if opts.Round != nil {
		filter[domain.MetaRoundNumber] = *opts.Round
	}
	hits, err := m.store.Query(ctx, s.Domain.MemoryCollection(), vec, topK*2, filter)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}

	records := make([]domain.MemoryRecord, 0, len(hits))
	for _, h := range hits {
		r := recordFromHit(h)
		if r.Domain != s.Domain || !containsTier(tiers, r.Tier) {
			continue
		}
		if opts.MinImportance > 0 && r.Importance < opts.MinImportance {
			continue
		}
		if r.Similarity < m.settings.RelevanceThreshold {
			continue
		}
		if m.settings.UseImportanceScoring {
			weight := r.Importance
			if r.Tier == domain.TierLongTerm && r.SymposiumID != s.ID && m.settings.ImportanceDecayRate > 0 {
				weight *= m.settings.ImportanceDecayRate
			}
			r.Score = weight * r.Similarity
		} else {
			r.Score = r.Similarity
		}
		records = append(records, r)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if len(records) > topK {
		records = records[:topK]
	}
	return records, nil
}

// ConsolidateRound stores a round's insights at the working tier. LLM
// extraction failures fall back to storing the start of the summary.
func (m *MemoryService) ConsolidateRound(
	ctx context.Context,
	s *domain.SymposiumSession,
	summary string,
	round int,
	useLLM bool,
) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("consolidate: %w: nil session", domain.ErrInvalidInput)
	}
	if !m.settings.ConsolidateAfterRound {
		return nil, nil
	}
	logger.Section(fmt.Sprintf("Consolidating round %d memories for %s", round, s.Domain))

	var insights []extractedInsight
	if useLLM && m.settings.Consolidation.UseLLMExtraction && m.llm != nil {
		insights = m.extractInsights(ctx, summary, round)
	} else {
		insights = []extractedInsight{{
			text:       summary,
			importance: domain.ImportanceMedium,
			context:    map[string]any{domain.MetaSource: "round_summary"},
		}}
	}

	var ids []string
	for _, in := range insights {
		id, err := m.Remember(ctx, s, in.text, in.context, in.importance, domain.TierWorking, round)
		if err != nil {
			return ids, fmt.Errorf("consolidate round %d: %w", round, err)
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	logger.Info("Stored %d insights from round %d", len(ids), round)
	return ids, nil
}

func (m *MemoryService) extractInsights(ctx context.Context, text string, round int) []extractedInsight {
	fallback := []extractedInsight{{
		text:       truncateRunes(text, fallbackInsightLength),
		importance: domain.ImportanceMedium,
		context:    map[string]any{domain.MetaRound: round, domain.MetaExtractedBy: "fallback"},
	}}

	c := m.settings.Consolidation
	prompt, err := renderPrompt(m.prompts, driven.PromptInsightExtraction, c.MinInsights, c.MaxInsights, text)
	if err != nil {
		logger.Warn("Insight extraction failed: %v", err)
		return fallback
	}
	resp, err := m.llm.Complete(ctx, driven.CompletionRequest{
		System:      extractionSystem,
		Messages:    []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}},
		MaxTokens:   extractionMaxTokens,
		Temperature: extractionTemperature,
	})
	if err != nil {
		logger.Warn("Insight extraction failed: %v", err)
		return fallback
	}

	insights := parseInsights(resp.Text, round)
	if len(insights) == 0 {
		logger.Warn("Insight extraction returned no insights for round %d", round)
		return fallback
	}
	if c.MaxInsights > 0 && len(insights) > c.MaxInsights {
		insights = insights[:c.MaxInsights]
	}
	return insights
}

// parseInsights reads "**Insight N**: ... **Importance**: ..." blocks.
// Importance is CRITICAL when the block mentions a critical result or a
// breakthrough, HIGH for major or significant ones and MEDIUM otherwise.
func parseInsights(text string, round int) []extractedInsight {
	blocks := insightSplit.Split(text, -1)
	if len(blocks) < 2 {
		return nil
	}
	var out []extractedInsight
	for _, block := range blocks[1:] {
		m := insightContent.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		lower := strings.ToLower(block)
		importance := domain.ImportanceMedium
		switch {
		case strings.Contains(lower, "critical") || strings.Contains(lower, "breakthrough"):
			importance = domain.ImportanceCritical
		case strings.Contains(lower, "major") || strings.Contains(lower, "significant"):
			importance = domain.ImportanceHigh
		}
		out = append(out, extractedInsight{
			text:       strings.TrimSpace(m[1]),
			importance: importance,
			context:    map[string]any{domain.MetaRound: round, domain.MetaExtractedBy: "llm"},
		})
	}
	return out
}

// PromoteToLongTerm re-tags records in place. Ids that no longer exist
// are skipped.
func (m *MemoryService) PromoteToLongTerm(ctx context.Context, s *domain.SymposiumSession, ids []string) (int, error) {
	if !m.settings.EnableLongTerm {
		return 0, nil
	}
	if s == nil {
		return 0, fmt.Errorf("promote: %w: nil session", domain.ErrInvalidInput)
	}
	if len(ids) == 0 {
		ids = s.WorkingIDs()
	}

	stamp := m.now().Format(time.RFC3339)
	promoted := 0
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	for _, id := range ids {
		err := m.store.UpdateMetadata(ctx, s.Domain.MemoryCollection(), id, map[string]any{
			domain.MetaMemoryType: domain.TierLongTerm.String(),
			domain.MetaPromotedAt: stamp,
		})
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCollectionNotFound) {
			logger.Debug("Memory %s not found, not promoted", id)
			continue
		}
		if err != nil {
			return promoted, fmt.Errorf("promote %s: %w", id, err)
		}
		promoted++
	}
	logger.Info("Promoted %d memories to long-term storage", promoted)
	return promoted, nil
}

// Statistics counts every record in the session's domain collection.
func (m *MemoryService) Statistics(ctx context.Context, s *domain.SymposiumSession) (*domain.MemoryStatistics, error) {
	if s == nil {
		return nil, fmt.Errorf("statistics: %w: nil session", domain.ErrInvalidInput)
	}
	stats := &domain.MemoryStatistics{
		ByTier:                make(map[domain.MemoryTier]int),
		CurrentSymposiumCount: len(s.WorkingIDs()),
		ShortTermBufferSize:   len(s.ShortTerm()),
	}
	records, err := m.store.Get(ctx, s.Domain.MemoryCollection(), nil)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	stats.Total = len(records)
	for _, r := range records {
		tier := domain.MemoryTier(domain.MetaString(r.Metadata, domain.MetaMemoryType, domain.UnknownValue))
		stats.ByTier[tier]++
		switch domain.ImportanceBucket(domain.MetaFloat(r.Metadata, domain.MetaImportance, defaultImportance)) {
		case "high":
			stats.HighImportance++
		case "medium":
			stats.MediumImportance++
		default:
			stats.LowImportance++
		}
	}
	return stats, nil
}

// ContextForRound recalls working and long-term memories relevant to the
// round's agenda and formats them for the agent prompt. No memories
// yields an empty string.
func (m *MemoryService) ContextForRound(
	ctx context.Context,
	s *domain.SymposiumSession,
	agenda string,
	questions []string,
	round int,
) (string, error) {
	query := strings.Join(append([]string{agenda}, questions...), " ")
	records, err := m.Recall(ctx, s, query, domain.RecallOptions{
		Tiers: []domain.MemoryTier{domain.TierWorking, domain.TierLongTerm},
		TopK:  m.settings.MaxPerRecall,
	})
	if err != nil {
		return "", fmt.Errorf("context for round %d: %w", round, err)
	}
	return FormatMemories(records), nil
}

// FormatMemories renders recalled records as the block placed in front of
// an agent's prompt.
func FormatMemories(records []domain.MemoryRecord) string {
	if len(records) == 0 {
		return ""
	}
	lines := []string{
		"\n" + memoryContextRule,
		"RELEVANT MEMORIES FROM YOUR PREVIOUS INSIGHTS:",
		memoryContextRule + "\n",
	}
	for i, r := range records {
		round := "?"
		if r.HasRound() {
			round = fmt.Sprintf("%d", r.RoundNumber)
		}
		lines = append(lines,
			fmt.Sprintf("[Memory %d] (Round %s, Importance: %.2f)", i+1, round, r.Importance),
			r.Text,
			"",
		)
	}
	lines = append(lines,
		memoryContextRule+"\n",
		"Use these memories to build on your previous contributions.\n",
	)
	return strings.Join(lines, "\n")
}

// ClearShortTerm empties the session's short-term buffer.
func (m *MemoryService) ClearShortTerm(s *domain.SymposiumSession) {
	if s != nil {
		s.ClearShortTerm()
	}
}

func (m *MemoryService) tierEnabled(t domain.MemoryTier) bool {
	switch t {
	case domain.TierShortTerm:
		return m.settings.EnableShortTerm
	case domain.TierWorking:
		return m.settings.EnableWorking
	case domain.TierLongTerm:
		return m.settings.EnableLongTerm
	default:
		return false
	}
}

func (m *MemoryService) ensureCollection(ctx context.Context, d domain.KnowledgeDomain) error {
	if _, err := m.store.EnsureCollection(ctx, d.MemoryCollection(), map[string]any{
		domain.MetaDomain: d.String(),
		"type":            "agent_memory",
	}); err != nil {
		return fmt.Errorf("ensure %s: %w", d.MemoryCollection(), err)
	}
	return nil
}

func recordFromHit(h domain.RetrievedChunk) domain.MemoryRecord {
	r := domain.MemoryRecord{
		ID:          h.ID,
		Text:        h.Text,
		Domain:      domain.KnowledgeDomain(domain.MetaString(h.Metadata, domain.MetaDomain, "")),
		SymposiumID: domain.MetaString(h.Metadata, domain.MetaSymposiumID, ""),
		Tier:        domain.MemoryTier(domain.MetaString(h.Metadata, domain.MetaMemoryType, "")),
		Importance:  domain.MetaFloat(h.Metadata, domain.MetaImportance, defaultImportance),
		RoundNumber: domain.MetaInt(h.Metadata, domain.MetaRoundNumber, domain.NoRound),
		Similarity:  h.Similarity(),
		Context:     make(map[string]any),
	}
	if ts, err := time.Parse(time.RFC3339, domain.MetaString(h.Metadata, domain.MetaTimestamp, "")); err == nil {
		r.Timestamp = ts
	}
	for k, v := range h.Metadata {
		switch k {
		case domain.MetaSymposiumID, domain.MetaDomain, domain.MetaMemoryType,
			domain.MetaImportance, domain.MetaTimestamp, domain.MetaRoundNumber:
		default:
			r.Context[k] = v
		}
	}
	return r
}

func containsTier(tiers []domain.MemoryTier, t domain.MemoryTier) bool {
	for _, x := range tiers {
		if x == t {
			return true
		}
	}
	return false
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
