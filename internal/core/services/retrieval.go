package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Tool-call limits for knowledge base queries.
const (
	DefaultToolTopK = 5
	MaxToolTopK     = 10
)

// Placeholders for chunks whose citation fields were never resolved.
const (
	citationUnavailable = "Citation unavailable"
	unknownTitle        = "Unknown Title"
)

// RetrievalService answers similarity queries against paper collections.
type RetrievalService struct {
	store       driven.VectorStore
	embedder    driven.EmbeddingService
	defaultTopK int
}

// NewRetrievalService creates a retrieval service. The embedder must be
// the one used at ingestion.
func NewRetrievalService(store driven.VectorStore, embedder driven.EmbeddingService, defaultTopK int) *RetrievalService {
	if defaultTopK <= 0 {
		defaultTopK = DefaultToolTopK
	}
	return &RetrievalService{store: store, embedder: embedder, defaultTopK: defaultTopK}
}

// Query embeds text once and searches the domain's collection. For the
// "all" pseudo-domain every domain contributes its own top-k, in domain
// order; results are not re-ranked across domains.
func (s *RetrievalService) Query(ctx context.Context, text string, d domain.KnowledgeDomain, topK int) ([]domain.RetrievedChunk, error) {
	if d != domain.DomainAll && !d.IsValid() {
		return nil, fmt.Errorf("query: %w: %q", domain.ErrInvalidDomain, d)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	domains := d.Expand()
	perDomain := make([][]domain.RetrievedChunk, len(domains))
	g, gctx := errgroup.WithContext(ctx)
	for i, dom := range domains {
		g.Go(func() error {
			hits, err := s.queryCollection(gctx, dom, vec, topK)
			if err != nil {
				return err
			}
			perDomain[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.RetrievedChunk
	for _, hits := range perDomain {
		out = append(out, hits...)
	}
	return out, nil
}

func (s *RetrievalService) queryCollection(ctx context.Context, d domain.KnowledgeDomain, vec []float32, topK int) ([]domain.RetrievedChunk, error) {
	hits, err := s.store.Query(ctx, d.PapersCollection(), vec, topK, nil)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		logger.Debug("Collection %s not found", d.PapersCollection())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", d.PapersCollection(), err)
	}
	for i := range hits {
		hits[i].Domain = d
	}
	return hits, nil
}

// FormatResults renders hits as numbered source blocks separated by
// "---" lines.
func (s *RetrievalService) FormatResults(results []domain.RetrievedChunk) string {
	if len(results) == 0 {
		return "No relevant information found in the knowledge base."
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, sourceBlock(i+1, r)+"\n")
	}
	return strings.Join(blocks, "\n---\n")
}

// QueryForAgent returns the context block an agent sees. Failures are
// reported as a plain-language notice.
func (s *RetrievalService) QueryForAgent(ctx context.Context, text string, d domain.KnowledgeDomain, topK int) string {
	out, err := s.queryForAgent(ctx, text, d, topK)
	if err != nil {
		logger.Warn("Knowledge base query failed for %s: %v", d, err)
		return unableToRetrieve(err)
	}
	return out
}

// QueryAsTool frames QueryForAgent output the way the knowledge base tool
// returns it, with citation instructions.
func (s *RetrievalService) QueryAsTool(ctx context.Context, text string, d domain.KnowledgeDomain, topK int) string {
	logger.Info("[%s] Querying knowledge base: %q", strings.ToUpper(d.String()), text)
	out, err := s.queryForAgent(ctx, text, d, topK)
	if err != nil {
		logger.Warn("Knowledge base query failed for %s: %v", d, err)
		return unableToRetrieve(err)
	}
	return fmt.Sprintf("Knowledge Base Results for: \"%s\"\n\n%s\n\n---\n"+
		"Instructions for citation:\n"+
		"When using information from above, cite as: Journal abbreviation (Year), Volume, Page numbers\n"+
		"Extract this from the paper metadata or content when available.\n", text, out)
}

func (s *RetrievalService) queryForAgent(ctx context.Context, text string, d domain.KnowledgeDomain, topK int) (string, error) {
	results, err := s.Query(ctx, text, d, topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No relevant information found in %s knowledge base for: %s", d, text), nil
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, sourceBlock(i+1, r))
	}
	return strings.Join(blocks, "\n\n---\n\n"), nil
}

func sourceBlock(n int, r domain.RetrievedChunk) string {
	return fmt.Sprintf("[Source %d] %s (%s) - %s\nCitation: %s\n\n%s",
		n,
		domain.MetaString(r.Metadata, domain.MetaAuthors, domain.UnknownValue),
		domain.MetaString(r.Metadata, domain.MetaYear, domain.NoYear),
		domain.MetaString(r.Metadata, domain.MetaTitle, unknownTitle),
		domain.MetaString(r.Metadata, domain.MetaCitation, citationUnavailable),
		r.Text,
	)
}

func unableToRetrieve(err error) string {
	return fmt.Sprintf("Unable to retrieve information from knowledge base. Error: %v\n"+
		"Please try rephrasing your query or proceed with your existing knowledge.", err)
}
