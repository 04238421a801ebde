package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/agora/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

func seedPapers(t *testing.T, store *memstore.VectorStore, d domain.KnowledgeDomain, chunks ...domain.Chunk) {
	t.Helper()
	ctx := context.Background()
	_, err := store.EnsureCollection(ctx, d.PapersCollection(), map[string]any{domain.MetaDomain: d.String()})
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, d.PapersCollection(), chunks))
}

func paperChunk(id, text string, vec []float32, meta map[string]any) domain.Chunk {
	return domain.Chunk{ID: id, Text: text, Embedding: vec, Metadata: meta}
}

// failingQueryStore fails every query.
type failingQueryStore struct {
	*memstore.VectorStore
}

func (failingQueryStore) Query(context.Context, string, []float32, int, driven.Filter) ([]domain.RetrievedChunk, error) {
	return nil, errors.New("disk I/O error")
}

func TestRetrievalService_Query(t *testing.T) {
	store := memstore.NewVectorStore()
	seedPapers(t, store, domain.DomainBiology,
		paperChunk("b1", "near", []float32{1, 0, 0}, nil),
		paperChunk("b2", "far", []float32{0, 1, 0}, nil),
		paperChunk("b3", "middle", []float32{1, 1, 0}, nil),
	)
	emb := newMockEmbedder()
	emb.vectors["channels"] = []float32{1, 0, 0}
	svc := NewRetrievalService(store, emb, 2)

	hits, err := svc.Query(context.Background(), "channels", domain.DomainBiology, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b1", hits[0].ID)
	assert.Equal(t, "b3", hits[1].ID)
	assert.Equal(t, domain.DomainBiology, hits[0].Domain)
	assert.InDelta(t, 1.0, hits[0].Similarity(), 1e-6)

	hits, err = svc.Query(context.Background(), "channels", domain.DomainBiology, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = svc.Query(context.Background(), "channels", domain.DomainNanofluidics, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrievalService_Query_AllDomains(t *testing.T) {
	store := memstore.NewVectorStore()
	seedPapers(t, store, domain.DomainNanofluidics,
		paperChunk("n1", "nanopore", []float32{1, 0, 0}, nil),
		paperChunk("n2", "nanochannel", []float32{1, 0.1, 0}, nil),
	)
	seedPapers(t, store, domain.DomainElectrochemistry,
		paperChunk("e1", "electrode", []float32{0, 1, 0}, nil),
	)
	emb := newMockEmbedder()
	emb.vectors["transport"] = []float32{1, 0, 0}
	svc := NewRetrievalService(store, emb, 5)

	hits, err := svc.Query(context.Background(), "transport", domain.DomainAll, 1)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// Domains keep their own top-k and appear in canonical order.
	assert.Equal(t, "e1", hits[0].ID)
	assert.Equal(t, domain.DomainElectrochemistry, hits[0].Domain)
	assert.Equal(t, "n1", hits[1].ID)
	assert.Equal(t, domain.DomainNanofluidics, hits[1].Domain)
	assert.Equal(t, 1, emb.embedCalls)
}

func TestRetrievalService_Query_Errors(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewVectorStore()

	_, err := NewRetrievalService(store, newMockEmbedder(), 5).Query(ctx, "q", "chemistry", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidDomain)

	_, err = NewRetrievalService(store, nil, 5).Query(ctx, "q", domain.DomainBiology, 5)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = NewRetrievalService(failingQueryStore{store}, newMockEmbedder(), 5).Query(ctx, "q", domain.DomainAll, 5)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestRetrievalService_FormatResults(t *testing.T) {
	svc := NewRetrievalService(memstore.NewVectorStore(), newMockEmbedder(), 5)
	assert.Equal(t, "No relevant information found in the knowledge base.", svc.FormatResults(nil))

	results := []domain.RetrievedChunk{
		{Text: "Selectivity rises as pores shrink.", Metadata: map[string]any{
			domain.MetaAuthors:  "Siria et al.",
			domain.MetaYear:     "2013",
			domain.MetaTitle:    "Giant osmotic energy conversion",
			domain.MetaCitation: "Nature (2013), 494, 455-458",
		}},
		{Text: "Unresolved source.", Metadata: map[string]any{domain.MetaCitation: ""}},
	}
	want := "[Source 1] Siria et al. (2013) - Giant osmotic energy conversion\n" +
		"Citation: Nature (2013), 494, 455-458\n\nSelectivity rises as pores shrink.\n" +
		"\n---\n" +
		"[Source 2] Unknown (n.d.) - Unknown Title\nCitation: Citation unavailable\n\nUnresolved source.\n"
	assert.Equal(t, want, svc.FormatResults(results))
}

func TestRetrievalService_QueryForAgent(t *testing.T) {
	store := memstore.NewVectorStore()
	seedPapers(t, store, domain.DomainBiology,
		paperChunk("b1", "KcsA filter", []float32{1, 0, 0}, map[string]any{domain.MetaTitle: "KcsA"}),
		paperChunk("b2", "NaK filter", []float32{1, 1, 0}, nil),
	)
	emb := newMockEmbedder()
	emb.vectors["filters"] = []float32{1, 0, 0}
	svc := NewRetrievalService(store, emb, 5)
	ctx := context.Background()

	out := svc.QueryForAgent(ctx, "filters", domain.DomainBiology, 2)
	blocks := strings.Split(out, "\n\n---\n\n")
	require.Len(t, blocks, 2)
	assert.True(t, strings.HasPrefix(blocks[0], "[Source 1] Unknown (n.d.) - KcsA\n"))
	assert.True(t, strings.HasSuffix(blocks[1], "\n\nNaK filter"))

	assert.Equal(t, "No relevant information found in membrane_science knowledge base for: filters",
		svc.QueryForAgent(ctx, "filters", domain.DomainMembraneScience, 2))

	emb.err = errors.New("model offline")
	failed := svc.QueryForAgent(ctx, "filters", domain.DomainBiology, 2)
	assert.True(t, strings.HasPrefix(failed, "Unable to retrieve information from knowledge base. Error: embed query: model offline\n"))
	assert.True(t, strings.HasSuffix(failed, "Please try rephrasing your query or proceed with your existing knowledge."))
}

func TestRetrievalService_QueryAsTool(t *testing.T) {
	svc := NewRetrievalService(memstore.NewVectorStore(), newMockEmbedder(), 5)

	out := svc.QueryAsTool(context.Background(), "pore size", domain.DomainBiology, 5)
	assert.Equal(t, "Knowledge Base Results for: \"pore size\"\n\n"+
		"No relevant information found in biology knowledge base for: pore size\n\n---\n"+
		"Instructions for citation:\n"+
		"When using information from above, cite as: Journal abbreviation (Year), Volume, Page numbers\n"+
		"Extract this from the paper metadata or content when available.\n", out)
}
