package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure ResponseValidator implements the interface.
var _ driving.ResponseValidator = (*ResponseValidator)(nil)

const (
	simpleMaxChars        = 50
	simpleMaxWords        = 100
	mechanismMinWords     = 50
	substantiveMinWords   = 150
	claimMinWords         = 5
	maxClaims             = 5
	maxSuggestedQueries   = 3
	queryMaxKeywords      = 10
	queryFallbackChars    = 100
	genericRetrievalQuery = "ion transport selectivity mechanisms"
	fallbackRetrievalTopK = 3
	claimRetrievalTopK    = 5
)

var (
	simplePatterns = regexp.MustCompile(`(?i)^(?:I agree|Thank you|Yes,? that|Good point|Interesting|` +
		`Let me clarify|To answer briefly|Could you|What do you mean|I see)`)
	numberWithUnit   = regexp.MustCompile(`\d+\.?\d*\s*[a-zA-Z/°µ]+`)
	citationPattern  = regexp.MustCompile(`(?i)et al\.?|\(\d{4}\)|according to`)
	sentenceBoundary = regexp.MustCompile(`[.!?]+`)
	queryPunctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

	mechanismKeywords = []string{
		"mechanism", "because", "due to", "caused by",
		"resulting from", "leads to", "controls", "influences",
	}

	queryStopWords = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
		"in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	}
)

// ResponseValidator decides whether an utterance needs knowledge base
// evidence and, when evidence is missing, how the agent should retry.
type ResponseValidator struct {
	retrieval driving.RetrievalService

	mu    sync.Mutex
	stats domain.ValidatorStats
}

// NewResponseValidator creates a validator. The retrieval service is only
// needed for ForceRetrieval.
func NewResponseValidator(retrieval driving.RetrievalService) *ResponseValidator {
	return &ResponseValidator{retrieval: retrieval}
}

// Classify labels short replies and conversational openers simple, and
// anything carrying numbers with units, citations or long mechanistic
// argument substantive.
func (v *ResponseValidator) Classify(text string) domain.ResponseClass {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < simpleMaxChars || simplePatterns.MatchString(text) {
		return domain.ResponseSimple
	}
	if isSubstantive(text) {
		return domain.ResponseSubstantive
	}
	if len(strings.Fields(text)) < simpleMaxWords {
		return domain.ResponseSimple
	}
	return domain.ResponseSubstantive
}

func isSubstantive(text string) bool {
	if numberWithUnit.MatchString(text) || citationPattern.MatchString(text) {
		return true
	}
	words := len(strings.Fields(text))
	if hasMechanism(text) && words > mechanismMinWords {
		return true
	}
	return words > substantiveMinWords
}

func hasMechanism(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range mechanismKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Validate accepts simple replies outright and substantive ones only when
// the knowledge base tool was called while drafting them.
func (v *ResponseValidator) Validate(text string, toolCalls []string) domain.ValidationOutcome {
	v.mu.Lock()
	v.stats.Validations++
	v.mu.Unlock()

	if v.Classify(text) == domain.ResponseSimple {
		return domain.ValidationOutcome{IsValid: true, Class: domain.ResponseSimple}
	}
	for _, name := range toolCalls {
		if name == domain.ToolQueryKnowledgeBase.String() {
			return domain.ValidationOutcome{IsValid: true, Class: domain.ResponseSubstantive}
		}
	}

	v.mu.Lock()
	v.stats.ForcedRetrievals++
	v.mu.Unlock()

	claims := v.ExtractClaims(text)
	return domain.ValidationOutcome{
		Class:         domain.ResponseSubstantive,
		RetryGuidance: retryGuidance(claims),
		Claims:        claims,
	}
}

func retryGuidance(claims []string) string {
	var b strings.Builder
	b.WriteString("Your response contains substantive scientific claims but lacks supporting evidence from your knowledge base.\n\n")
	b.WriteString("REQUIRED ACTION:\n")
	b.WriteString("Please query your knowledge base to support your claims. ")
	b.WriteString("Use the query_knowledge_base tool before making substantive scientific statements.\n\n")
	if len(claims) > 0 {
		b.WriteString("Suggested queries to support your response:\n")
		for i, c := range claims {
			if i == maxSuggestedQueries {
				break
			}
			fmt.Fprintf(&b, "%d. query_knowledge_base(\"%s\")\n", i+1, c)
		}
		b.WriteString("\n")
	}
	b.WriteString("After retrieving evidence, reformulate your response with proper citations.")
	return b.String()
}

// ExtractClaims turns sentences that carry a number with a unit or a
// mechanism keyword into keyword queries.
func (v *ResponseValidator) ExtractClaims(text string) []string {
	var claims []string
	for _, sentence := range sentenceBoundary.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" || len(strings.Fields(sentence)) < claimMinWords {
			continue
		}
		if !numberWithUnit.MatchString(sentence) && !hasMechanism(sentence) {
			continue
		}
		claims = append(claims, SentenceToQuery(sentence))
		if len(claims) == maxClaims {
			break
		}
	}
	return claims
}

// SentenceToQuery keeps the first ten words longer than three characters
// that are not stop words, with punctuation other than hyphens removed.
func SentenceToQuery(sentence string) string {
	keywords := make([]string, 0, queryMaxKeywords)
	for _, w := range strings.Fields(sentence) {
		if len(keywords) == queryMaxKeywords {
			break
		}
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		if _, stop := queryStopWords[strings.ToLower(w)]; stop {
			continue
		}
		keywords = append(keywords, w)
	}
	query := strings.TrimSpace(queryPunctuation.ReplaceAllString(strings.Join(keywords, " "), ""))
	if query == "" {
		return truncateRunes(sentence, queryFallbackChars)
	}
	return query
}

// ForceRetrieval queries the knowledge base for the first claim in text.
// Without claims it falls back to the given query, then to a generic one.
func (v *ResponseValidator) ForceRetrieval(ctx context.Context, text, fallback string, d domain.KnowledgeDomain) string {
	if v.retrieval == nil {
		return unableToRetrieve(domain.ErrEmbeddingUnavailable)
	}
	claims := v.ExtractClaims(text)
	if len(claims) == 0 {
		query := fallback
		if query == "" {
			query = genericRetrievalQuery
		}
		logger.Debug("No claims to ground, retrieving for %q", query)
		return v.retrieval.QueryForAgent(ctx, query, d, fallbackRetrievalTopK)
	}
	logger.Debug("Forcing retrieval for claim %q", claims[0])
	return v.retrieval.QueryForAgent(ctx, claims[0], d, claimRetrievalTopK)
}

// Stats returns the counters since the last reset.
func (v *ResponseValidator) Stats() domain.ValidatorStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// ResetStats zeroes the counters.
func (v *ResponseValidator) ResetStats() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = domain.ValidatorStats{}
}
