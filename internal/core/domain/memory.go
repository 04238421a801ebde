package domain

import (
	"fmt"
	"sync"
	"time"
)

// MemoryTier classifies a memory record's persistence scope.
// Promotion is one-directional: working records may become long-term,
// short-term records are never promoted.
type MemoryTier string

// Memory tiers.
const (
	TierShortTerm MemoryTier = "short_term"
	TierWorking   MemoryTier = "working"
	TierLongTerm  MemoryTier = "long_term"
)

// IsValid returns true if the tier is recognised.
func (t MemoryTier) IsValid() bool {
	switch t {
	case TierShortTerm, TierWorking, TierLongTerm:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t MemoryTier) String() string {
	return string(t)
}

// AllTiers returns every tier.
func AllTiers() []MemoryTier {
	return []MemoryTier{TierShortTerm, TierWorking, TierLongTerm}
}

// Importance levels for memory records.
const (
	ImportanceCritical = 1.0
	ImportanceHigh     = 0.8
	ImportanceMedium   = 0.6
	ImportanceLow      = 0.4
	ImportanceMinimal  = 0.2
)

// Memory metadata keys.
const (
	MetaSymposiumID = "symposium_id"
	MetaMemoryType  = "memory_type"
	MetaImportance  = "importance"
	MetaTimestamp   = "timestamp"
	MetaRoundNumber = "round_number"
	MetaPromotedAt  = "promoted_at"
	MetaSource      = "source"
	MetaExtractedBy = "extracted_by"
	MetaRound       = "round"
)

// NoRound marks a memory record that is not tied to a round.
const NoRound = -1

// MemoryRecord is an insight stored in an agent memory collection.
type MemoryRecord struct {
	ID          string
	Text        string
	Domain      KnowledgeDomain
	SymposiumID string
	Tier        MemoryTier
	Importance  float64
	RoundNumber int
	Timestamp   time.Time

	// Context holds scalar fields supplied by the caller.
	Context map[string]any

	// Similarity is 1/(1+distance) when the record came from a recall.
	Similarity float64

	// Score is the final ranking score of a recall.
	Score float64
}

// HasRound reports whether the record is tied to a round.
func (r MemoryRecord) HasRound() bool {
	return r.RoundNumber != NoRound
}

// MemoryStatistics summarises a domain's memory collection.
type MemoryStatistics struct {
	Total                 int
	ByTier                map[MemoryTier]int
	HighImportance        int
	MediumImportance      int
	LowImportance         int
	CurrentSymposiumCount int
	ShortTermBufferSize   int
}

// ImportanceBucket names the statistics bucket for an importance score.
func ImportanceBucket(importance float64) string {
	switch {
	case importance >= 0.8:
		return "high"
	case importance >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// RecallOptions narrows a memory recall.
type RecallOptions struct {
	// Tiers restricts results to these tiers. Empty means working and long-term.
	Tiers []MemoryTier

	// TopK is the number of records to return (default from settings).
	TopK int

	// MinImportance drops records below this importance.
	MinImportance float64

	// Round restricts results to one round when non-nil.
	Round *int
}

// NewSymposiumID returns an id of the form symposium_YYYYMMDD_HHMMSS.
func NewSymposiumID(now time.Time) string {
	return "symposium_" + now.Format("20060102_150405")
}

// SymposiumSession carries the mutable state of one symposium run:
// the working-tier ids eligible for promotion, the short-term buffer
// and the per-agent round plans. It is created by the caller and passed
// to memory and planning operations.
type SymposiumSession struct {
	ID     string
	Domain KnowledgeDomain

	mu         sync.Mutex
	workingIDs []string
	shortTerm  []MemoryRecord
	plans      map[string]ContributionPlan
}

// NewSymposiumSession creates a session for one domain.
func NewSymposiumSession(id string, d KnowledgeDomain) *SymposiumSession {
	return &SymposiumSession{
		ID:     id,
		Domain: d,
		plans:  make(map[string]ContributionPlan),
	}
}

// TrackWorking records a working-tier id for later promotion.
func (s *SymposiumSession) TrackWorking(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingIDs = append(s.workingIDs, id)
}

// WorkingIDs returns a copy of the tracked working-tier ids.
func (s *SymposiumSession) WorkingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.workingIDs))
	copy(out, s.workingIDs)
	return out
}

// BufferShortTerm appends a record to the short-term buffer.
func (s *SymposiumSession) BufferShortTerm(r MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortTerm = append(s.shortTerm, r)
}

// ShortTerm returns a copy of the short-term buffer.
func (s *SymposiumSession) ShortTerm() []MemoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemoryRecord, len(s.shortTerm))
	copy(out, s.shortTerm)
	return out
}

// ClearShortTerm empties the short-term buffer.
func (s *SymposiumSession) ClearShortTerm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortTerm = nil
}

// SetPlan stores an agent's plan for a round.
func (s *SymposiumSession) SetPlan(agent string, round int, plan ContributionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[planKey(agent, round)] = plan
}

// Plan returns an agent's plan for a round.
func (s *SymposiumSession) Plan(agent string, round int) (ContributionPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planKey(agent, round)]
	return p, ok
}

func planKey(agent string, round int) string {
	return fmt.Sprintf("%s#%d", agent, round)
}
