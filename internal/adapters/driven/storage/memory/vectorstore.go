package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

type collection struct {
	meta    map[string]any
	records []domain.Chunk
}

// VectorStore is an in-memory implementation of driven.VectorStore with
// the same duplicate and domain rules as the SQLite store.
type VectorStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
	ids         map[string]string
}

// NewVectorStore creates an empty in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		collections: make(map[string]*collection),
		ids:         make(map[string]string),
	}
}

// EnsureCollection creates the collection if missing.
func (s *VectorStore) EnsureCollection(_ context.Context, name string, metadata map[string]any) (*driven.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty collection name", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &collection{meta: copyMeta(metadata)}
		s.collections[name] = c
	}
	return &driven.Collection{Name: name, Metadata: copyMeta(c.meta)}, nil
}

// Collections lists every collection by name.
func (s *VectorStore) Collections(_ context.Context) ([]driven.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]driven.Collection, 0, len(s.collections))
	for name, c := range s.collections {
		out = append(out, driven.Collection{Name: name, Metadata: copyMeta(c.meta)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Count returns the number of records in a collection.
func (s *VectorStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.records), nil
	}
	return 0, nil
}

// DistinctValues returns the distinct string values of one metadata key.
func (s *VectorStore) DistinctValues(_ context.Context, name, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	set := make(map[string]struct{})
	for _, r := range c.records {
		if v, ok := r.Metadata[key]; ok && v != nil {
			set[fmt.Sprint(v)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Add appends records; the batch is rejected as a whole on any duplicate id.
func (s *VectorStore) Add(_ context.Context, name string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	collDomain, _ := c.meta[domain.MetaDomain].(string)

	seen := make(map[string]struct{}, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			return fmt.Errorf("%w: chunk %d has no id", domain.ErrInvalidInput, i)
		}
		if _, dup := seen[ch.ID]; dup {
			return fmt.Errorf("%w: %s repeated in batch", domain.ErrDuplicateChunkID, ch.ID)
		}
		if _, exists := s.ids[ch.ID]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateChunkID, ch.ID)
		}
		if d := domain.MetaString(ch.Metadata, domain.MetaDomain, ""); collDomain != "" && d != "" && d != collDomain {
			return fmt.Errorf("%w: chunk %s has domain %s", domain.ErrInvalidDomain, ch.ID, d)
		}
		seen[ch.ID] = struct{}{}
	}

	for _, ch := range chunks {
		ch.Metadata = copyMeta(ch.Metadata)
		ch.Embedding = append([]float32(nil), ch.Embedding...)
		c.records = append(c.records, ch)
		s.ids[ch.ID] = name
	}
	return nil
}

// Query ranks the filtered records by cosine distance.
func (s *VectorStore) Query(
	_ context.Context, name string, embedding []float32, topK int, filter driven.Filter,
) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, nil
	}

	var hits []domain.RetrievedChunk
	for _, r := range c.records {
		if !matches(r.Metadata, filter) {
			continue
		}
		hits = append(hits, domain.RetrievedChunk{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: copyMeta(r.Metadata),
			Distance: cosineDistance(embedding, r.Embedding),
			Domain:   domain.KnowledgeDomain(domain.MetaString(r.Metadata, domain.MetaDomain, "")),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Get returns matching records in insertion order, without embeddings.
func (s *VectorStore) Get(_ context.Context, name string, filter driven.Filter) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	var out []domain.Chunk
	for _, r := range c.records {
		if matches(r.Metadata, filter) {
			out = append(out, domain.Chunk{ID: r.ID, Text: r.Text, Position: r.Position, Metadata: copyMeta(r.Metadata)})
		}
	}
	return out, nil
}

// UpdateMetadata merges patch into one record's metadata.
func (s *VectorStore) UpdateMetadata(_ context.Context, name, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		for i := range c.records {
			if c.records[i].ID == id {
				for k, v := range patch {
					c.records[i].Metadata[k] = v
				}
				return nil
			}
		}
	}
	return fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}

// matches compares numerically where both sides are numbers, so an int
// filter matches a float64 stored value.
func matches(meta map[string]any, filter driven.Filter) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok {
			return false
		}
		if gf, ok := toFloat(got); ok {
			if wf, ok := toFloat(want); ok {
				if gf != wf {
					return false
				}
				continue
			}
		}
		if got != want {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
